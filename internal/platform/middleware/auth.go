package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/httputil"
	platformstrings "accounting/pkg/platform/strings"
	"accounting/pkg/requestcontext"
)

// Claims are the bearer token claims this service understands. Scope is a
// space-separated list, as in OAuth 2.0 access tokens.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Scopes splits the scope claim, dropping repeats.
func (c *Claims) Scopes() []string {
	return platformstrings.DedupeAndTrim(strings.Fields(c.Scope))
}

// TokenValidator verifies HS256 bearer tokens.
type TokenValidator struct {
	key    []byte
	issuer string
	leeway time.Duration
}

func NewTokenValidator(signingKey, issuer string) *TokenValidator {
	return &TokenValidator{key: []byte(signingKey), issuer: issuer, leeway: 30 * time.Second}
}

// ValidateToken parses and verifies a compact JWT.
func (v *TokenValidator) ValidateToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

// Sign issues a token for the given subject and scopes. Used by tests and
// local tooling.
func (v *TokenValidator) Sign(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// RequireScope rejects requests without a valid bearer token (401) or whose
// token lacks scope (403). An empty scope only requires a valid token.
func RequireScope(validator *TokenValidator, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, claims.Subject, claims.Scopes())
			if scope != "" && !requestcontext.HasScope(ctx, scope) {
				logger.WarnContext(ctx, "forbidden - missing scope",
					"request_id", requestID,
					"subject", claims.Subject,
					"required_scope", scope,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token lacks required scope"))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
