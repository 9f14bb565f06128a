package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-dispatch/webhook"
)

// Handlers sets up the API routes; metrics may be nil
func Handlers(ctx context.Context, webhookService webhook.UseCase, dispatcher EventDispatcher, metrics http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-api", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// Event intake from the CMS
		r.Post("/events/{event}", postEvent(dispatcher).ServeHTTP)

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", listWebhooks(webhookService).ServeHTTP)
			r.Post("/", createWebhook(webhookService).ServeHTTP)
			r.Get("/{id}", getWebhook(webhookService).ServeHTTP)
			r.Patch("/{id}", updateWebhook(webhookService).ServeHTTP)
			r.Delete("/{id}", deactivateWebhook(webhookService).ServeHTTP)
			r.Get("/{id}/deliveries", listDeliveries(webhookService).ServeHTTP)
			r.Post("/{id}/test", sendTest(webhookService).ServeHTTP)
		})
	})

	return r
}
