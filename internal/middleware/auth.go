// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

const claimsKey contextKey = "access_claims"

var errMissingToken = errors.New("missing authorization token")

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// ClaimsValidator rejects access tokens that were blacklisted on logout or
// minted before the user's last logout-all, password change or role change.
type ClaimsValidator interface {
	ValidateAccessClaims(ctx context.Context, claims *AccessTokenClaims) error
}

// RoleResolver answers whether a user currently holds the admin role. It
// reads the stored profile, not the token claim.
type RoleResolver interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type AccessTokenClaims struct {
	UserID       string
	Email        string
	Role         string
	TokenVersion int
	JTI          string
	ExpiresAt    time.Time
}

// gate verifies the request's token and runs the revocation checks.
type gate struct {
	verifier  TokenVerifier
	validator ClaimsValidator
}

func (g gate) claims(r *http.Request) (*AccessTokenClaims, error) {
	token := ExtractToken(r)
	if token == "" {
		return nil, errMissingToken
	}

	claims, err := g.verifier.VerifyAccessToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	if g.validator != nil {
		if err := g.validator.ValidateAccessClaims(r.Context(), claims); err != nil {
			return nil, err
		}
	}

	return claims, nil
}

func Authenticator(verifier TokenVerifier, validator ClaimsValidator) func(http.Handler) http.Handler {
	g := gate{verifier: verifier, validator: validator}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := g.claims(r)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously. Used by guest checkout.
func OptionalAuth(verifier TokenVerifier, validator ClaimsValidator) func(http.Handler) http.Handler {
	g := gate{verifier: verifier, validator: validator}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := g.claims(r); err == nil {
				r = r.WithContext(withClaims(r.Context(), claims))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(resolver RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			ok, err := resolver.IsAdmin(r.Context(), userID)
			if err != nil {
				slog.Warn("admin role lookup failed", "user_id", userID, "error", err)
			}
			if !ok {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken reads the bearer token. Websocket upgrades may pass it as
// the access_token query parameter since browsers cannot set the header.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			return r.URL.Query().Get("access_token")
		}
		return ""
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

func withClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// WithUser builds an authenticated context without a token.
func WithUser(ctx context.Context, userID, role string) context.Context {
	return withClaims(ctx, &AccessTokenClaims{UserID: userID, Role: role})
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case core.IsAppError(err):
		core.JSONError(w, err)
	case errors.Is(err, errMissingToken):
		core.JSONError(w, core.UnauthorizedError(err.Error()))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey).(*AccessTokenClaims)
	return claims
}

func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}
