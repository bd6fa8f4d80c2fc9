package middleware

import (
	"net/http"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// ErrInsufficientPermissions is returned to authenticated callers whose role
// does not grant the route.
var ErrInsufficientPermissions = domain.NewAuthorizationError("insufficient permissions")

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]domain.Role{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the user has one of the specified roles.
// It must run after AuthMiddleware; a request without identity gets 401.
func RequireRole(allowedRoles []domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					next.ServeHTTP(w, r)
					return
				}
			}

			userID, _ := GetUserID(r.Context())
			logger.Warn("User role not authorized",
				zap.String("user_id", userID.String()),
				zap.String("role", string(role)),
				zap.String("path", r.URL.Path),
			)
			RespondWithServiceError(w, r, ErrInsufficientPermissions, logger)
		})
	}
}
