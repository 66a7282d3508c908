package keycloak

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const claimsContextKey = "auth_claims"

// FailureHandler writes the response for a rejected request.  It must
// abort c.
type FailureHandler func(c *gin.Context, err error)

// Middleware guards gin routes with token verification and permission
// checks.
type Middleware struct {
	verifier  Verifier
	enforcer  *Enforcer
	logger    logging.Logger
	onFailure FailureHandler
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithFailureHandler replaces the default JSON error body.
func WithFailureHandler(h FailureHandler) MiddlewareOption {
	return func(m *Middleware) { m.onFailure = h }
}

// NewMiddleware builds the guard.  A nil enforcer uses the default role
// table.
func NewMiddleware(v Verifier, enforcer *Enforcer, logger logging.Logger, opts ...MiddlewareOption) *Middleware {
	if enforcer == nil {
		enforcer = NewEnforcer(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	m := &Middleware{verifier: v, enforcer: enforcer, logger: logger, onFailure: defaultFailure}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate verifies the bearer token and stores its claims on c.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.authenticate(c) {
			c.Next()
		}
	}
}

// Require authenticates when needed, then rejects callers lacking perm.
func (m *Middleware) Require(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		claims, _ := ClaimsFromContext(c)
		if !m.enforcer.Allowed(claims, perm) {
			m.logger.Warn("Permission denied",
				logging.String("subject", claims.Subject),
				logging.String("permission", string(perm)))
			m.onFailure(c, errors.New(errors.ErrCodeForbidden, "permission denied").WithDetail(string(perm)))
			return
		}
		c.Next()
	}
}

// authenticate stores verified claims on c, or aborts c and returns false.
func (m *Middleware) authenticate(c *gin.Context) bool {
	if _, ok := ClaimsFromContext(c); ok {
		return true
	}
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err == nil {
		var claims *TokenClaims
		if claims, err = m.verifier.VerifyToken(c.Request.Context(), token); err == nil {
			c.Set(claimsContextKey, claims)
			return true
		}
	}
	m.logger.Warn("Authentication failed",
		logging.String("path", c.Request.URL.Path),
		logging.String("client_ip", c.ClientIP()),
		logging.Err(err))
	m.onFailure(c, err)
	return false
}

// ClaimsFromContext returns the claims Authenticate stored.
func ClaimsFromContext(c *gin.Context) (*TokenClaims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*TokenClaims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrTokenMalformed
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

func defaultFailure(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status == 401 {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"code": code.String(), "message": err.Error()})
}

//Personal.AI order the ending
