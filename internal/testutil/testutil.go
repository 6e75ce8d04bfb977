// Package testutil holds fixtures shared by the package tests: an identity
// provider that serves a JWKS document and signs tokens, and quiet loggers.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const (
	Audience = "drinks"
	Issuer   = "https://coffee-shop.test/"
)

type signingKey struct {
	kid string
	key *rsa.PrivateKey
}

// IdentityProvider is a fake token issuer backed by an httptest server.
type IdentityProvider struct {
	Server *httptest.Server

	mu      sync.Mutex
	keys    []signingKey
	fetches atomic.Int32
}

func NewIdentityProvider(t *testing.T) *IdentityProvider {
	t.Helper()

	idp := &IdentityProvider{}
	idp.AddKey(t)
	idp.Server = httptest.NewServer(http.HandlerFunc(idp.serveJWKS))
	t.Cleanup(idp.Server.Close)
	return idp
}

func (idp *IdentityProvider) JWKSURL() string {
	return idp.Server.URL + "/.well-known/jwks.json"
}

// Fetches counts how often the key document was downloaded.
func (idp *IdentityProvider) Fetches() int {
	return int(idp.fetches.Load())
}

// AddKey publishes a new signing key and makes it the one Token signs with.
func (idp *IdentityProvider) AddKey(t *testing.T) string {
	t.Helper()
	key := NewRSAKey(t)
	kid := uuid.NewString()

	idp.mu.Lock()
	idp.keys = append(idp.keys, signingKey{kid: kid, key: key})
	idp.mu.Unlock()
	return kid
}

// Token signs claims with the newest key. Standard claims (iss, aud, sub,
// iat, exp) are filled in unless present; a nil value removes a claim.
func (idp *IdentityProvider) Token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	idp.mu.Lock()
	current := idp.keys[len(idp.keys)-1]
	idp.mu.Unlock()

	return SignToken(t, current.key, current.kid, claims)
}

// TokenWithPermissions is a valid token carrying permissions.
func (idp *IdentityProvider) TokenWithPermissions(t *testing.T, permissions ...string) string {
	t.Helper()
	perms := make([]interface{}, 0, len(permissions))
	for _, p := range permissions {
		perms = append(perms, p)
	}
	return idp.Token(t, jwt.MapClaims{"permissions": perms})
}

func (idp *IdentityProvider) serveJWKS(w http.ResponseWriter, r *http.Request) {
	idp.fetches.Add(1)

	idp.mu.Lock()
	set := jose.JSONWebKeySet{}
	for _, k := range idp.keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &k.key.PublicKey,
			KeyID:     k.kid,
			Algorithm: "RS256",
			Use:       "sig",
		})
	}
	idp.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func NewRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}
	return key
}

// SignToken signs an RS256 token with an arbitrary key, published or not.
func SignToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	now := time.Now()
	full := jwt.MapClaims{
		"iss": Issuer,
		"aud": Audience,
		"sub": "auth0|barista",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		if v == nil {
			delete(full, k)
			continue
		}
		full[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, full)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// NewLogger returns a logger that discards output and records entries.
func NewLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}
