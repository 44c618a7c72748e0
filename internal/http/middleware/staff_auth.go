package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
)

// StaffClaims are the JWT claims issued to clinic staff. Every token carries
// the tenant it belongs to; cross-tenant access is impossible by construction.
type StaffClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// StaffAuth authenticates staff requests and places a tenancy.Actor on the
// request context. Tokens are HMAC-signed JWTs carrying tenant_id and role
// claims; the subject is the staff user ID.
//
// When secret is empty, token auth is disabled and the actor is resolved from
// the X-Tenant-Id and X-User-Id headers instead. That mode exists for local
// development and tests only.
func StaffAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				actor, ok := actorFromHeaders(r)
				if !ok {
					http.Error(w, "missing tenant headers", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(tenancy.WithActor(r.Context(), actor)))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := StaffClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.TenantID == "" {
				http.Error(w, "token missing tenant", http.StatusUnauthorized)
				return
			}
			actor := tenancy.Actor{
				TenantID: claims.TenantID,
				UserID:   claims.Subject,
				Role:     tenancy.Role(claims.Role),
			}
			if actor.Role == "" {
				actor.Role = tenancy.RoleCoordinator
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithActor(r.Context(), actor)))
		})
	}
}

func actorFromHeaders(r *http.Request) (tenancy.Actor, bool) {
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	if tenantID == "" {
		return tenancy.Actor{}, false
	}
	actor := tenancy.Actor{
		TenantID: tenantID,
		UserID:   strings.TrimSpace(r.Header.Get("X-User-Id")),
		Role:     tenancy.Role(strings.TrimSpace(r.Header.Get("X-User-Role"))),
	}
	if actor.Role == "" {
		actor.Role = tenancy.RoleCoordinator
	}
	return actor, true
}
