package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-dispatch/webhook"
)

/* HTTP layer DTOs for the webhook management API
 * Separate from domain entities so the secret never leaks by accident
 */

type createWebhookRequest struct {
	Name           string   `json:"name" validate:"required,max=255"`
	URL            string   `json:"url" validate:"required,url"`
	Events         []string `json:"events" validate:"required,min=1,dive,required"`
	TimeoutSeconds int      `json:"timeout_seconds" validate:"omitempty,min=1"`
	CreatedBy      string   `json:"created_by" validate:"max=255"`
}

type updateWebhookRequest struct {
	Name           *string  `json:"name" validate:"omitempty,max=255"`
	URL            *string  `json:"url" validate:"omitempty,url"`
	Events         []string `json:"events" validate:"omitempty,min=1,dive,required"`
	TimeoutSeconds *int     `json:"timeout_seconds" validate:"omitempty,min=1"`
	Active         *bool    `json:"active"`
}

type webhookResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Events         []string  `json:"events"`
	Active         bool      `json:"active"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// createWebhookResponse is the only response that carries the secret
type createWebhookResponse struct {
	webhookResponse
	Secret string `json:"secret"`
}

type attemptResponse struct {
	DeliveryID      string            `json:"delivery_id"`
	WebhookID       string            `json:"webhook_id"`
	Event           string            `json:"event"`
	Attempt         int               `json:"attempt"`
	Payload         json.RawMessage   `json:"payload"`
	StatusCode      *int              `json:"status_code"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
	ResponseBody    string            `json:"response_body"`
	ResponseHeaders map[string]string `json:"response_headers"`
	NextRetryAt     *time.Time        `json:"next_retry_at"`
	CreatedAt       time.Time         `json:"created_at"`
}

type testDeliveryResponse struct {
	DeliveryID string `json:"delivery_id"`
}

func toWebhookResponse(wh webhook.Webhook) webhookResponse {
	return webhookResponse{
		ID:             wh.ID,
		Name:           wh.Name,
		URL:            wh.URL,
		Events:         wh.Events.Names(),
		Active:         wh.Active,
		TimeoutSeconds: int(wh.Timeout / time.Second),
		CreatedBy:      wh.CreatedBy,
		CreatedAt:      wh.CreatedAt,
		UpdatedAt:      wh.UpdatedAt,
	}
}

func toAttemptResponse(a webhook.DeliveryAttempt) attemptResponse {
	var body json.RawMessage
	if json.Valid(a.Payload) {
		body = json.RawMessage(a.Payload)
	}
	return attemptResponse{
		DeliveryID:      a.DeliveryID,
		WebhookID:       a.WebhookID,
		Event:           string(a.Event),
		Attempt:         a.Attempt,
		Payload:         body,
		StatusCode:      a.StatusCode,
		Success:         a.Success,
		Error:           a.Error,
		DurationMs:      a.DurationMs,
		ResponseBody:    a.ResponseBody,
		ResponseHeaders: a.ResponseHeaders,
		NextRetryAt:     a.NextRetryAt,
		CreatedAt:       a.CreatedAt,
	}
}

func listWebhooks(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks, err := service.List(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		result := make([]webhookResponse, 0, len(hooks))
		for _, wh := range hooks {
			result = append(result, toWebhookResponse(wh))
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func getWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wh, err := service.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWebhookResponse(wh))
	})
}

func createWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createWebhookRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		wh, err := service.Register(r.Context(), webhook.RegisterInput{
			Name:      req.Name,
			URL:       req.URL,
			Events:    req.Events,
			Timeout:   time.Duration(req.TimeoutSeconds) * time.Second,
			CreatedBy: req.CreatedBy,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createWebhookResponse{
			webhookResponse: toWebhookResponse(wh),
			Secret:          wh.Secret,
		})
	})
}

func updateWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req updateWebhookRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		in := webhook.UpdateInput{
			Name:   req.Name,
			URL:    req.URL,
			Events: req.Events,
			Active: req.Active,
		}
		if req.TimeoutSeconds != nil {
			timeout := time.Duration(*req.TimeoutSeconds) * time.Second
			in.Timeout = &timeout
		}
		wh, err := service.Update(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWebhookResponse(wh))
	})
}

func deactivateWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func listDeliveries(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Message: "limit must be a positive integer"})
				return
			}
			limit = n
		}

		attempts, err := service.History(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		result := make([]attemptResponse, 0, len(attempts))
		for _, a := range attempts {
			result = append(result, toAttemptResponse(a))
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func sendTest(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := service.SendTest(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, testDeliveryResponse{DeliveryID: id})
	})
}
