package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinkMenuAPI/internal/response"
	"drinkMenuAPI/internal/testutil"
)

func newTestVerifier(t *testing.T) (*Verifier, *testutil.IdentityProvider, *Metrics) {
	t.Helper()
	idp := testutil.NewIdentityProvider(t)
	logger, _ := testutil.NewLogger()
	metrics := NewMetrics(prometheus.NewRegistry())

	keys := NewKeySet(idp.JWKSURL(), idp.Server.Client(), logger)
	v := NewVerifier(keys, VerifierConfig{
		Audience:         testutil.Audience,
		Issuer:           testutil.Issuer,
		Algorithm:        "RS256",
		PermissionsClaim: "permissions",
	}, logger, metrics)
	return v, idp, metrics
}

func requireAuthError(t *testing.T, err error, status int, reason string) {
	t.Helper()
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, status, authErr.Status)
	assert.Equal(t, reason, authErr.Reason)
	assert.NotEmpty(t, authErr.Description)
}

func TestAuthorize_Success(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	token := idp.TokenWithPermissions(t, "create:drinks", "read:drinks-detail")

	p, err := v.Authorize(context.Background(), "Bearer "+token, "create:drinks")
	require.NoError(t, err)

	assert.Equal(t, "auth0|barista", p.Subject)
	assert.True(t, p.Can("read:drinks-detail"))
	assert.False(t, p.Can("delete:drinks"))
}

func TestAuthorize_SchemeIsCaseInsensitive(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	token := idp.TokenWithPermissions(t, "create:drinks")

	_, err := v.Authorize(context.Background(), "bEaReR "+token, "create:drinks")
	assert.NoError(t, err)
}

func TestAuthorize_HeaderErrors(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	token := idp.TokenWithPermissions(t, "create:drinks")
	ctx := context.Background()

	_, err := v.Authorize(ctx, "", "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonMissingHeader)

	for _, header := range []string{
		"Token " + token,
		"Bearer",
		"Bearer ",
		"Bearer " + token + " extra",
		token,
	} {
		_, err := v.Authorize(ctx, header, "create:drinks")
		requireAuthError(t, err, http.StatusUnauthorized, ReasonMalformedHeader)
	}
}

func TestAuthorize_MalformedToken(t *testing.T) {
	v, _, _ := newTestVerifier(t)

	_, err := v.Authorize(context.Background(), "Bearer not-a-jwt", "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonMalformedToken)
}

func TestAuthorize_MissingKeyID(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	token := testutil.SignToken(t, testutil.NewRSAKey(t), "", jwt.MapClaims{"permissions": []interface{}{"create:drinks"}})

	_, err := v.Authorize(context.Background(), "Bearer "+token, "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonMalformedHeader)
}

func TestAuthorize_UnknownKey(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	token := testutil.SignToken(t, testutil.NewRSAKey(t), "unpublished", jwt.MapClaims{"permissions": []interface{}{"create:drinks"}})

	_, err := v.Authorize(context.Background(), "Bearer "+token, "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonKeyNotFound)
	assert.Equal(t, 1, idp.Fetches())
}

func TestAuthorize_TokenErrors(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	ctx := context.Background()
	perms := []interface{}{"create:drinks"}

	cases := []struct {
		name   string
		claims jwt.MapClaims
		reason string
	}{
		{"expired", jwt.MapClaims{"permissions": perms, "exp": time.Now().Add(-time.Minute).Unix()}, ReasonTokenExpired},
		{"wrong audience", jwt.MapClaims{"permissions": perms, "aud": "someone-else"}, ReasonInvalidClaims},
		{"missing audience", jwt.MapClaims{"permissions": perms, "aud": nil}, ReasonInvalidClaims},
		{"wrong issuer", jwt.MapClaims{"permissions": perms, "iss": "https://evil.test/"}, ReasonInvalidClaims},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Authorize(ctx, "Bearer "+idp.Token(t, tc.claims), "create:drinks")
			requireAuthError(t, err, http.StatusUnauthorized, tc.reason)
		})
	}
}

func TestAuthorize_BadSignature(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	ctx := context.Background()

	// Prime the cache so the published kid is known, then sign with another key.
	_, err := v.Authorize(ctx, "Bearer "+idp.TokenWithPermissions(t, "create:drinks"), "create:drinks")
	require.NoError(t, err)

	unverified, _, err := jwt.NewParser().ParseUnverified(idp.TokenWithPermissions(t, "create:drinks"), jwt.MapClaims{})
	require.NoError(t, err)
	kid := unverified.Header["kid"].(string)

	forged := testutil.SignToken(t, testutil.NewRSAKey(t), kid, jwt.MapClaims{"permissions": []interface{}{"create:drinks"}})
	_, err = v.Authorize(ctx, "Bearer "+forged, "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonInvalidToken)
}

func TestAuthorize_WrongAlgorithm(t *testing.T) {
	v, idp, _ := newTestVerifier(t)

	unverified, _, err := jwt.NewParser().ParseUnverified(idp.TokenWithPermissions(t), jwt.MapClaims{})
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":         testutil.Issuer,
		"aud":         testutil.Audience,
		"exp":         time.Now().Add(time.Hour).Unix(),
		"permissions": []interface{}{"create:drinks"},
	})
	hs.Header["kid"] = unverified.Header["kid"]
	token, err := hs.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Authorize(context.Background(), "Bearer "+token, "create:drinks")
	requireAuthError(t, err, http.StatusUnauthorized, ReasonInvalidToken)
}

func TestAuthorize_PermissionsClaim(t *testing.T) {
	v, idp, _ := newTestVerifier(t)
	ctx := context.Background()

	_, err := v.Authorize(ctx, "Bearer "+idp.Token(t, nil), "create:drinks")
	requireAuthError(t, err, http.StatusBadRequest, ReasonInvalidPermissions)

	_, err = v.Authorize(ctx, "Bearer "+idp.Token(t, jwt.MapClaims{"permissions": "create:drinks"}), "create:drinks")
	requireAuthError(t, err, http.StatusBadRequest, ReasonInvalidPermissions)

	_, err = v.Authorize(ctx, "Bearer "+idp.TokenWithPermissions(t, "read:drinks-detail"), "create:drinks")
	requireAuthError(t, err, http.StatusForbidden, ReasonPermissionNotFound)
}

func TestRequirePermission(t *testing.T) {
	v, idp, metrics := newTestVerifier(t)

	var got *Principal
	h := v.RequirePermission("delete:drinks")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("authorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/drinks/1", nil)
		req.Header.Set("Authorization", "Bearer "+idp.TokenWithPermissions(t, "delete:drinks"))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, got)
		assert.Equal(t, []string{"delete:drinks"}, got.Permissions)
	})

	t.Run("forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/drinks/1", nil)
		req.Header.Set("Authorization", "Bearer "+idp.TokenWithPermissions(t, "create:drinks"))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		var body response.ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, http.StatusForbidden, body.Error)
		assert.Equal(t, ReasonPermissionNotFound, body.Code)
		assert.Equal(t, 1.0, promtest.ToFloat64(metrics.authRejections.WithLabelValues(ReasonPermissionNotFound)))
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/drinks/1", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, 1.0, promtest.ToFloat64(metrics.authRejections.WithLabelValues(ReasonMissingHeader)))
	})
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
