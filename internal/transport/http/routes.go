package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RouteOptions struct {
	Logger *slog.Logger
	// CallbackSecret authenticates the worker progress callback.
	CallbackSecret string
}

func Routes(h *Handler, opts RouteOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID
	r.Use(RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/rpc", func(r chi.Router) {
		r.Post("/decompose", h.Decompose)

		r.Group(func(r chi.Router) {
			r.Use(NoStore)

			r.With(RequireCallbackToken(opts.CallbackSecret)).Post("/progress/{id}", h.Progress)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/translate", h.Translate)
				r.Post("/cancel", h.Cancel)
				r.Post("/history/delete", h.DeleteHistory)
				r.Get("/history", h.History)
			})
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
