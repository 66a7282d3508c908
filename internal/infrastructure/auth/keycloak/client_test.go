package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const (
	testRealm  = "ppi"
	testClient = "ppi-api"
)

type mockKeycloak struct {
	server     *httptest.Server
	privateKey *rsa.PrivateKey
	kid        string
	jwksHits   atomic.Int32
}

func newMockKeycloak(t *testing.T) *mockKeycloak {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mk := &mockKeycloak{privateKey: key, kid: "key-1"}
	mk.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/certs") {
			http.NotFound(w, r)
			return
		}
		mk.jwksHits.Add(1)
		pub := mk.privateKey.PublicKey
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]interface{}{{
				"kid": mk.kid,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(mk.server.Close)
	return mk
}

func (mk *mockKeycloak) issuer() string { return mk.server.URL + "/realms/" + testRealm }

func (mk *mockKeycloak) claims(roles ...string) jwt.MapClaims {
	r := make([]interface{}, len(roles))
	for i, v := range roles {
		r[i] = v
	}
	return jwt.MapClaims{
		"sub":                "user-1",
		"iss":                mk.issuer(),
		"aud":                []string{testClient},
		"exp":                time.Now().Add(time.Hour).Unix(),
		"iat":                time.Now().Unix(),
		"preferred_username": "alice",
		"realm_access":       map[string]interface{}{"roles": r},
	}
}

func (mk *mockKeycloak) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = mk.kid
	s, err := tok.SignedString(mk.privateKey)
	require.NoError(t, err)
	return s
}

func (mk *mockKeycloak) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Config{
		BaseURL:  mk.server.URL,
		Realm:    testRealm,
		ClientID: testClient,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClient_ValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Realm: "r", ClientID: "c"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = NewClient(context.Background(), Config{BaseURL: "http://x", ClientID: "c"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = NewClient(context.Background(), Config{BaseURL: "http://x", Realm: "r"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestNewClient_FetchesKeys(t *testing.T) {
	mk := newMockKeycloak(t)
	mk.client(t)
	assert.Equal(t, int32(1), mk.jwksHits.Load())
}

func TestNewClient_UnreachableRealm(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewClient(context.Background(), Config{BaseURL: srv.URL, Realm: testRealm, ClientID: testClient}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestVerifyToken_Valid(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)

	claims, err := c.VerifyToken(context.Background(), mk.sign(t, mk.claims("ppi_client")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.PreferredUsername)
	assert.Equal(t, []string{"ppi_client"}, claims.RealmRoles)
	assert.Equal(t, []string{testClient}, claims.Audience)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestVerifyToken_ClientRoles(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)
	cl := mk.claims()
	cl["resource_access"] = map[string]interface{}{
		testClient: map[string]interface{}{"roles": []interface{}{"ppi_operator"}},
	}
	claims, err := c.VerifyToken(context.Background(), mk.sign(t, cl))
	require.NoError(t, err)
	assert.Equal(t, []string{"ppi_operator"}, claims.ClientRoles[testClient])
	assert.Contains(t, claims.Roles(), "ppi_operator")
}

func TestVerifyToken_Rejections(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{"empty", func() string { return "" }, ErrMissingToken},
		{"garbage", func() string { return "not.a.jwt" }, ErrTokenMalformed},
		{"expired", func() string {
			cl := mk.claims()
			cl["exp"] = time.Now().Add(-time.Hour).Unix()
			return mk.sign(t, cl)
		}, ErrTokenExpired},
		{"wrong issuer", func() string {
			cl := mk.claims()
			cl["iss"] = "https://elsewhere/realms/x"
			return mk.sign(t, cl)
		}, ErrTokenInvalidIssuer},
		{"wrong audience", func() string {
			cl := mk.claims()
			cl["aud"] = []string{"someone-else"}
			return mk.sign(t, cl)
		}, ErrTokenInvalidAudience},
		{"bad signature", func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mk.claims())
			tok.Header["kid"] = mk.kid
			s, err := tok.SignedString(other)
			require.NoError(t, err)
			return s
		}, ErrTokenInvalidSignature},
		{"unknown kid", func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mk.claims())
			tok.Header["kid"] = "rotated-away"
			s, err := tok.SignedString(mk.privateKey)
			require.NoError(t, err)
			return s
		}, ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := c.VerifyToken(context.Background(), tt.token())
			assert.Nil(t, claims)
			assert.Same(t, tt.want, err)
		})
	}
}

func TestVerifyToken_AuthorizedPartyAccepted(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)
	cl := mk.claims()
	cl["aud"] = []string{"account"}
	cl["azp"] = testClient
	_, err := c.VerifyToken(context.Background(), mk.sign(t, cl))
	assert.NoError(t, err)
}

func TestVerifyToken_RefreshesOnKeyRotation(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)

	rotated, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mk.privateKey = rotated
	mk.kid = "key-2"

	_, err = c.VerifyToken(context.Background(), mk.sign(t, mk.claims()))
	require.NoError(t, err)
	assert.Equal(t, int32(2), mk.jwksHits.Load())
}

func TestHealth(t *testing.T) {
	mk := newMockKeycloak(t)
	c := mk.client(t)
	assert.NoError(t, c.Health(context.Background()))
	mk.server.Close()
	assert.Error(t, c.Health(context.Background()))
}

//Personal.AI order the ending
