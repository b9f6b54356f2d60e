package middleware

import (
	"net/http"
	"strings"

	"dawailo/internal/ports/auth"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

// Guard aplica autorización por rol sobre rutas chi.
type Guard struct {
	resolver capabilities.CapabilitiesResolver
}

func NewGuard(resolver capabilities.CapabilitiesResolver) *Guard {
	return &Guard{resolver: resolver}
}

// Authenticated solo exige claims.
func (g *Guard) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authenticated(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require exige que el rol tenga la capability.
func (g *Guard) Require(c capabilities.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticated(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !g.allowed(r, claims, c) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePatientScope protege rutas /patients/{patientID}/...:
// - paciente: solo sus propios datos
// - resto de roles: necesitan la capability
func (g *Guard) RequirePatientScope(c capabilities.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticated(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			patientID := strings.TrimSpace(chi.URLParam(r, "patientID"))
			if claims.Role == auth.RolePatient {
				if patientID == "" || patientID != claims.UserID {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !g.allowed(r, claims, c) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) allowed(r *http.Request, claims auth.Claims, c capabilities.Capability) bool {
	if g == nil || g.resolver == nil {
		return false
	}
	ok, err := g.resolver.HasFeature(r.Context(), capabilities.CapabilityCheck{
		UserID:     claims.UserID,
		Role:       claims.Role,
		Capability: c,
	})
	return err == nil && ok
}

func authenticated(r *http.Request) (auth.Claims, bool) {
	claims, ok := GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return auth.Claims{}, false
	}
	return claims, true
}
