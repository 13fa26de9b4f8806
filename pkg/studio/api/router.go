package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

// BasePath is where the collection routes are mounted.
const BasePath = "/api/v1"

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AuthKey enables bearer token authentication on BasePath.
	AuthKey *secret.Box[string]
	Logger  *slog.Logger
}

// NewRouter builds the full HTTP surface: health checks plus the collection
// routes under BasePath.
func NewRouter(s *collection.Studio, opts RouterOptions) (chi.Router, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var auth Middleware
	if opts.AuthKey != nil {
		var err error
		if auth, err = AuthMiddleware(opts.AuthKey); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))

	RoutesHealthz(r)

	handler := NewHandler(s, logger)
	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Mount(BasePath, handler.Routes())
	})
	return r, nil
}

func RoutesHealthz(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
}
