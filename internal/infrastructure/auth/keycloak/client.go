// Package keycloak verifies bearer tokens issued by a Keycloak realm and
// maps realm and client roles onto prediction-API permissions.
package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	VerifyToken(ctx context.Context, rawToken string) (*TokenClaims, error)
	Health(ctx context.Context) error
}

// TokenClaims is the subset of a Keycloak access token the API uses.
type TokenClaims struct {
	Subject           string              `json:"sub"`
	PreferredUsername string              `json:"preferred_username"`
	Email             string              `json:"email"`
	RealmRoles        []string            `json:"realm_roles"`
	ClientRoles       map[string][]string `json:"client_roles"`
	IssuedAt          time.Time           `json:"iat"`
	ExpiresAt         time.Time           `json:"exp"`
	Issuer            string              `json:"iss"`
	Audience          []string            `json:"aud"`
	Scope             string              `json:"scope"`
}

// Roles flattens realm roles and the roles of every client.
func (c *TokenClaims) Roles() []string {
	out := append([]string(nil), c.RealmRoles...)
	for _, roles := range c.ClientRoles {
		out = append(out, roles...)
	}
	return out
}

// Config locates the realm.
type Config struct {
	BaseURL  string `json:"base_url"`
	Realm    string `json:"realm"`
	ClientID string `json:"client_id"`
	// JWKSRefreshInterval <= 0 disables the background key refresh; keys
	// are still fetched when an unknown kid shows up.
	JWKSRefreshInterval time.Duration `json:"jwks_refresh_interval"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	// Leeway tolerates clock skew on exp/iat.
	Leeway time.Duration `json:"leeway"`
}

var (
	ErrMissingToken          = errors.New(errors.ErrCodeUnauthorized, "missing bearer token")
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "invalid token signature")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "invalid token issuer")
	ErrTokenInvalidAudience  = errors.New(errors.ErrCodeUnauthorized, "invalid token audience")
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "malformed token")
	ErrUnknownKey            = errors.New(errors.ErrCodeUnauthorized, "token signed with unknown key")
	ErrJWKSRefreshFailed     = errors.New(errors.ErrCodeServiceUnavailable, "jwks refresh failed")
	ErrInvalidConfig         = errors.New(errors.ErrCodeValidation, "invalid keycloak configuration")
)

// ─────────────────────────────────────────────────────────────────────────────
// JWKS cache
// ─────────────────────────────────────────────────────────────────────────────

type jwksCache struct {
	keys   map[string]*rsa.PublicKey
	mu     sync.RWMutex
	client *http.Client
	url    string
	logger logging.Logger
}

func (c *jwksCache) refresh(ctx context.Context) error {
	c.logger.Debug("Refreshing JWKS cache", logging.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch JWKS: %s", resp.Status)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			c.logger.Warn("Failed to decode modulus", logging.String("kid", k.Kid), logging.Err(err))
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			c.logger.Warn("Failed to decode exponent", logging.String("kid", k.Kid), logging.Err(err))
			continue
		}
		exp := 0
		for _, b := range e {
			exp = exp<<8 | int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}
	}

	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()
	return nil
}

func (c *jwksCache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[kid]
	return k, ok
}

// key returns the key for kid, refreshing once on a miss so rotated keys
// are picked up without waiting for the ticker.
func (c *jwksCache) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := c.lookup(kid); ok {
		return k, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, ErrJWKSRefreshFailed.WithCause(err)
	}
	if k, ok := c.lookup(kid); ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// Client verifies tokens locally against the realm's signing keys.
type Client struct {
	config     Config
	httpClient *http.Client
	jwks       *jwksCache
	logger     logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

var _ Verifier = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for JWKS fetches.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient validates cfg and fetches the realm keys once.
func NewClient(ctx context.Context, cfg Config, logger logging.Logger, opts ...ClientOption) (*Client, error) {
	switch {
	case cfg.BaseURL == "":
		return nil, ErrInvalidConfig.WithDetail("base_url is required")
	case cfg.Realm == "":
		return nil, ErrInvalidConfig.WithDetail("realm is required")
	case cfg.ClientID == "":
		return nil, ErrInvalidConfig.WithDetail("client_id is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.jwks = &jwksCache{
		client: c.httpClient,
		url:    c.issuer() + "/protocol/openid-connect/certs",
		logger: logger,
	}
	if err := c.jwks.refresh(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch JWKS")
	}
	if cfg.JWKSRefreshInterval > 0 {
		go c.refreshLoop(cfg.JWKSRefreshInterval)
	}
	return c, nil
}

func (c *Client) refreshLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
			if err := c.jwks.refresh(ctx); err != nil {
				c.logger.Error("Failed to refresh JWKS", logging.Err(err))
			}
			cancel()
		}
	}
}

// Close stops the background key refresh.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Client) issuer() string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(c.config.BaseURL, "/"), c.config.Realm)
}

// Health refetches the realm keys.
func (c *Client) Health(ctx context.Context) error {
	return c.jwks.refresh(ctx)
}

// VerifyToken checks signature, issuer, expiry and audience.  The token
// must name the configured client in aud or azp.
func (c *Client) VerifyToken(ctx context.Context, rawToken string) (*TokenClaims, error) {
	if rawToken == "" {
		return nil, ErrMissingToken
	}
	var keyErr error
	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			keyErr = ErrTokenMalformed
			return nil, keyErr
		}
		key, err := c.jwks.key(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(c.issuer()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.config.Leeway),
	)
	if err != nil {
		return nil, classify(err, keyErr)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if !c.audienceAccepted(claims) {
		return nil, ErrTokenInvalidAudience
	}
	return toTokenClaims(claims), nil
}

func classify(err, keyErr error) error {
	if keyErr != nil {
		return keyErr
	}
	switch {
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalidIssuer
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenInvalidSignature
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}
}

func (c *Client) audienceAccepted(claims jwt.MapClaims) bool {
	if aud, err := claims.GetAudience(); err == nil {
		for _, a := range aud {
			if a == c.config.ClientID {
				return true
			}
		}
	}
	azp, _ := claims["azp"].(string)
	return azp == c.config.ClientID
}

func toTokenClaims(claims jwt.MapClaims) *TokenClaims {
	tc := &TokenClaims{ClientRoles: make(map[string][]string)}
	tc.Subject, _ = claims.GetSubject()
	tc.Issuer, _ = claims.GetIssuer()
	tc.Audience, _ = claims.GetAudience()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	tc.Email, _ = claims["email"].(string)
	tc.PreferredUsername, _ = claims["preferred_username"].(string)
	tc.Scope, _ = claims["scope"].(string)

	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		tc.RealmRoles = stringList(realm["roles"])
	}
	if resources, ok := claims["resource_access"].(map[string]interface{}); ok {
		for client, access := range resources {
			if m, ok := access.(map[string]interface{}); ok {
				tc.ClientRoles[client] = stringList(m["roles"])
			}
		}
	}
	return tc
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

//Personal.AI order the ending
