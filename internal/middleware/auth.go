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

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type claimsKey struct{}

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// RevocationChecker reports whether an access token was revoked before it
// expired, either by itself or through a bump of its user's token version.
type RevocationChecker interface {
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	ValidateTokenVersion(ctx context.Context, userID string, tokenVersion int) error
}

// AccessTokenClaims is what a verified bearer token says about the caller.
// SessionID is the refresh token family the token was issued for.
type AccessTokenClaims struct {
	UserID       string
	Role         string
	TokenVersion int
	SessionID    string
	JTI          string
	ExpiresAt    time.Time
}

// Authenticator requires a valid bearer token. revocations may be nil; a
// failed denylist lookup lets the token through, a failed token version
// lookup does not.
func Authenticator(
	verifier TokenVerifier,
	revocations RevocationChecker,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, tokenError(err))
				return
			}

			if revocations != nil && claims.JTI != "" {
				revoked, err := revocations.IsAccessTokenRevoked(r.Context(), claims.JTI)
				switch {
				case err != nil:
					slog.Warn("revocation lookup failed, allowing token",
						"error", err,
						"user_id", claims.UserID,
					)
				case revoked:
					core.JSONError(w, core.TokenRevokedError())
					return
				}
			}

			if revocations != nil {
				err := revocations.ValidateTokenVersion(
					r.Context(),
					claims.UserID,
					claims.TokenVersion,
				)
				switch {
				case errors.Is(err, core.ErrTokenRevoked):
					core.JSONError(w, core.TokenRevokedError())
					return
				case err != nil:
					core.InternalServerError(w, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func withClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetUserRole(r.Context())
			if role == "" {
				core.JSONError(w, core.UnauthorizedError(""))
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			core.JSONError(w, core.ForbiddenError("insufficient permissions"))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(core.RoleAdmin)(next)
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func tokenError(err error) error {
	if core.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	default:
		return core.TokenInvalidError()
	}
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*AccessTokenClaims)
	return claims
}

func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Role
	}
	return ""
}

// GetViewer is the single place handlers turn the request context into an
// explicit caller value.
func GetViewer(ctx context.Context) core.Viewer {
	c := GetClaims(ctx)
	if c == nil {
		return core.Viewer{}
	}
	return core.Viewer{UserID: c.UserID, Role: c.Role}
}

// WithViewer is used by tests to simulate an authenticated request.
func WithViewer(ctx context.Context, v core.Viewer) context.Context {
	return withClaims(ctx, &AccessTokenClaims{UserID: v.UserID, Role: v.Role})
}
