package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/satwatch-io/satwatch/internal/api/response"
	"github.com/satwatch-io/satwatch/internal/relay"
)

// NewOrderEventsHandler returns an http.HandlerFunc for
// GET /api/v1/orders/{orderID}/events: a server-sent-event stream of the
// order's lifecycle, ending after a terminal event. Heartbeat comments
// keep idle connections alive.
func NewOrderEventsHandler(bridge *relay.Bridge, heartbeat time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "orderID is required", nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Response writer does not support streaming", nil)
			return
		}

		sub, err := bridge.Stream(r.Context(), orderID)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "SUBSCRIBE_FAILED", "Could not subscribe to order events", nil)
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				name := evt.Type
				if name == "" {
					name = "order.update"
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
				flusher.Flush()
			}
		}
	}
}
