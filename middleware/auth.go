package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/response"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Rejection reasons, returned to the client in the error body code field.
const (
	ReasonMissingHeader      = "missing header"
	ReasonMalformedHeader    = "malformed header"
	ReasonMalformedToken     = "malformed token"
	ReasonKeyNotFound        = "key not found"
	ReasonTokenExpired       = "token expired"
	ReasonInvalidClaims      = "invalid claims"
	ReasonInvalidToken       = "invalid token"
	ReasonInvalidPermissions = "invalid permissions claim"
	ReasonPermissionNotFound = "permission not found"
)

// AuthError is a rejected authorization attempt.
type AuthError struct {
	Status      int
	Reason      string
	Description string
}

func (e *AuthError) Error() string {
	return e.Reason + ": " + e.Description
}

func unauthorized(reason, description string) *AuthError {
	return &AuthError{Status: http.StatusUnauthorized, Reason: reason, Description: description}
}

// Principal is the verified caller handed to handlers.
type Principal struct {
	Subject     string
	Permissions []string
	Claims      jwt.MapClaims
}

func (p *Principal) Can(permission string) bool {
	return slices.Contains(p.Permissions, permission)
}

type VerifierConfig struct {
	Audience         string
	Issuer           string
	Algorithm        string
	PermissionsClaim string
}

// Verifier checks bearer tokens against the identity provider's keys and
// the permission required by a route.
type Verifier struct {
	keys    KeyProvider
	cfg     VerifierConfig
	parser  *jwt.Parser
	logger  *logrus.Logger
	metrics *Metrics
}

func NewVerifier(keys KeyProvider, cfg VerifierConfig, logger *logrus.Logger, metrics *Metrics) *Verifier {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}
	if cfg.PermissionsClaim == "" {
		cfg.PermissionsClaim = "permissions"
	}
	return &Verifier{
		keys: keys,
		cfg:  cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{cfg.Algorithm}),
			jwt.WithAudience(cfg.Audience),
			jwt.WithIssuer(cfg.Issuer),
		),
		logger:  logger,
		metrics: metrics,
	}
}

// Authorize runs the whole check for one request and stops at the first
// failing step. Failures are always *AuthError.
func (v *Verifier) Authorize(ctx context.Context, authHeader, permission string) (*Principal, error) {
	raw, err := bearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, unauthorized(ReasonMalformedToken, "Unable to parse authentication token.")
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, unauthorized(ReasonMalformedHeader, "Authorization malformed.")
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		return nil, unauthorized(ReasonKeyNotFound, "Unable to find the appropriate key.")
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}); err != nil {
		return nil, classifyTokenError(err)
	}

	permissions, err := v.permissions(claims)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(permissions, permission) {
		return nil, &AuthError{
			Status:      http.StatusForbidden,
			Reason:      ReasonPermissionNotFound,
			Description: "Permission not found.",
		}
	}

	subject, _ := claims.GetSubject()
	return &Principal{Subject: subject, Permissions: permissions, Claims: claims}, nil
}

// RequirePermission guards a route. The handler only runs for callers whose
// token carries permission.
func (v *Verifier) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Authorize(r.Context(), r.Header.Get("Authorization"), permission)
			if err != nil {
				v.reject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		v.logger.WithError(err).Error("authorization failed unexpectedly")
		response.Error(w, http.StatusInternalServerError)
		return
	}

	v.metrics.AuthRejected(authErr.Reason)
	v.logger.WithFields(logrus.Fields{
		"reason":     authErr.Reason,
		"status":     authErr.Status,
		"path":       r.URL.Path,
		"request_id": RequestIDFromContext(r.Context()),
	}).Info("request rejected")

	response.ErrorWithReason(w, authErr.Status, authErr.Reason, authErr.Description)
}

func (v *Verifier) permissions(claims jwt.MapClaims) ([]string, error) {
	invalid := &AuthError{
		Status:      http.StatusBadRequest,
		Reason:      ReasonInvalidPermissions,
		Description: "Permissions not included in JWT.",
	}

	raw, ok := claims[v.cfg.PermissionsClaim]
	if !ok {
		return nil, invalid
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, invalid
	}

	permissions := make([]string, 0, len(list))
	for _, p := range list {
		s, ok := p.(string)
		if !ok {
			return nil, invalid
		}
		permissions = append(permissions, s)
	}
	return permissions, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", unauthorized(ReasonMissingHeader, "Authorization header is expected.")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", unauthorized(ReasonMalformedHeader, "Authorization header must be a bearer token.")
	}
	return parts[1], nil
}

func classifyTokenError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthorized(ReasonTokenExpired, "Token expired.")
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return unauthorized(ReasonInvalidClaims, "Incorrect claims. Please, check the audience and issuer.")
	default:
		return unauthorized(ReasonInvalidToken, "Unable to parse authentication token.")
	}
}

// PrincipalFromContext returns the caller stored by RequirePermission.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*Principal)
	return p, ok
}
