package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/delivery"
	"github.com/marcelsud/webhook-dispatch/webhook/payload"
)

const maxEventBytes = 1 << 20

// EventDispatcher fans an event out to subscribed webhooks; *delivery.Dispatcher satisfies it
type EventDispatcher interface {
	Dispatch(ctx context.Context, event webhook.EventName, data json.RawMessage) (delivery.DispatchResult, error)
}

type dispatchResponse struct {
	Event       string            `json:"event"`
	Matched     int               `json:"matched"`
	DeliveryIDs []string          `json:"delivery_ids"`
	Failed      map[string]string `json:"failed,omitempty"`
}

func postEvent(dispatcher EventDispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := webhook.EventName(chi.URLParam(r, "event"))
		if err := event.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: "payload too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "failed to read body"})
			return
		}
		if err := payload.ValidateObject(body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), event, body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, dispatchResponse{
			Event:       string(result.Event),
			Matched:     result.Matched,
			DeliveryIDs: result.DeliveryIDs,
			Failed:      result.Failed,
		})
	})
}
