package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Guards are the access-control middlewares handlers mount their routes
// behind. AuthRateLimit may be nil when no limiter is configured.
type Guards struct {
	Authenticated func(http.Handler) http.Handler
	Optional      func(http.Handler) http.Handler
	Admin         func(http.Handler) http.Handler
	AuthRateLimit func(http.Handler) http.Handler
}

func (g Guards) rateLimited() func(http.Handler) http.Handler {
	if g.AuthRateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return g.AuthRateLimit
}

// pathID parses a UUID path parameter
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("invalid %s", name)
	}
	return id, nil
}

// currentUser returns the authenticated caller. Routes behind
// Guards.Authenticated always have one.
func currentUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		logger.Error("User ID not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusUnauthorized, "not authenticated")
		return uuid.Nil, false
	}
	return userID, true
}
