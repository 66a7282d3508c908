package keycloak

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

func init() { gin.SetMode(gin.TestMode) }

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyToken(ctx context.Context, raw string) (*TokenClaims, error) {
	args := m.Called(ctx, raw)
	claims, _ := args.Get(0).(*TokenClaims)
	return claims, args.Error(1)
}

func (m *mockVerifier) Health(ctx context.Context) error { return m.Called(ctx).Error(0) }

func guardedRouter(mw *Middleware) *gin.Engine {
	r := gin.New()
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/predict", mw.Require(PermPredict), func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})
	r.POST("/reload", mw.Require(PermModelReload), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/whoami", mw.Authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_MissingToken(t *testing.T) {
	v := &mockVerifier{}
	r := guardedRouter(NewMiddleware(v, nil, nil))

	w := do(r, http.MethodPost, "/predict", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeUnauthorized))

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/predict", "Basic abc").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/open", "").Code)
	v.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestMiddleware_InvalidToken(t *testing.T) {
	v := &mockVerifier{}
	v.On("VerifyToken", mock.Anything, "bad").Return(nil, ErrTokenExpired)
	r := guardedRouter(NewMiddleware(v, nil, nil))

	w := do(r, http.MethodGet, "/whoami", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestMiddleware_PermissionChecks(t *testing.T) {
	v := &mockVerifier{}
	v.On("VerifyToken", mock.Anything, "client").Return(&TokenClaims{Subject: "c1", RealmRoles: []string{string(RoleClient)}}, nil)
	v.On("VerifyToken", mock.Anything, "operator").Return(&TokenClaims{Subject: "o1", RealmRoles: []string{string(RoleOperator)}}, nil)
	r := guardedRouter(NewMiddleware(v, nil, nil))

	w := do(r, http.MethodPost, "/predict", "Bearer client")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", w.Body.String())

	w = do(r, http.MethodPost, "/reload", "Bearer client")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeForbidden))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/reload", "bearer operator").Code)
}

func TestMiddleware_CustomFailureHandler(t *testing.T) {
	var seen error
	mw := NewMiddleware(&mockVerifier{}, nil, nil, WithFailureHandler(func(c *gin.Context, err error) {
		seen = err
		c.AbortWithStatus(http.StatusTeapot)
	}))
	w := do(guardedRouter(mw), http.MethodPost, "/predict", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Same(t, ErrMissingToken, seen)
}

//Personal.AI order the ending
