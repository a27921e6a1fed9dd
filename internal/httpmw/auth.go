// Package httpmw holds the HTTP middleware for the notification service:
// JWT bearer auth for the user-facing API and service-key auth for the
// internal dispatch surface.
package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamdesk/teamdesk/pkg/apikey"
	"github.com/teamdesk/teamdesk/pkg/jsonutil"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

type contextKey int

const identityKey contextKey = iota

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID   string
	TenantID *string
	Name     string
}

// IdentityFrom returns the authenticated identity stored by JWTAuth.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity, as JWTAuth
// would have stored it.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// JWTAuth validates an HS256 bearer token and stores the caller identity in
// the request context. Requests without a valid token get 401.
func JWTAuth(secret string, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(authz, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Debug("rejected bearer token", "error", err)
				jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "token missing subject")
				return
			}
			id := &Identity{UserID: sub}
			if name, ok := claims["name"].(string); ok {
				id.Name = name
			}
			if tenant, ok := claims["tenant_id"].(string); ok && tenant != "" {
				id.TenantID = &tenant
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// ServiceKeyAuth guards service-to-service endpoints. The presented
// X-API-Key must hash to one of the configured key hashes.
func ServiceKeyAuth(secret string, keyHashes []string, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "missing api key")
				return
			}
			for _, hash := range keyHashes {
				if apikey.Matches(key, secret, hash) {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.Warn("rejected service api key", "remote", r.RemoteAddr)
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid api key")
		})
	}
}
