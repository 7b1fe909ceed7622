package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/satwatch-io/satwatch/internal/api/response"
	"github.com/satwatch-io/satwatch/internal/storage"
	"github.com/satwatch-io/satwatch/pkg/models"
)

// OrderStore is the slice of the storage service this handler needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, req storage.OrderCreate) (*storage.Order, error)
}

// OrderPublisher enqueues a created order onto the work queue.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, orderID string, payload map[string]any) error
}

// NewCreateOrderHandler returns an http.HandlerFunc for POST /api/v1/orders.
// The work-queue publish is awaited before responding so an accepted order
// is never lost to a shutdown mid-publish.
func NewCreateOrderHandler(store OrderStore, pub OrderPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type      string    `json:"type"`
			StartDate string    `json:"start_date"`
			EndDate   string    `json:"end_date"`
			BBox      []float64 `json:"bbox"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Type == "" {
			req.Type = models.JobTypeSearch
		}
		if req.StartDate == "" || req.EndDate == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "start_date and end_date are required", nil)
			return
		}
		if _, err := time.Parse(time.RFC3339, req.StartDate); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "start_date must be a valid RFC3339 timestamp", nil)
			return
		}
		if _, err := time.Parse(time.RFC3339, req.EndDate); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "end_date must be a valid RFC3339 timestamp", nil)
			return
		}
		if len(req.BBox) != 4 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "bbox must be [minLon, minLat, maxLon, maxLat]", nil)
			return
		}
		if req.BBox[0] >= req.BBox[2] || req.BBox[1] >= req.BBox[3] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "bbox min values must be less than max values", nil)
			return
		}

		created, err := store.CreateOrder(r.Context(), storage.OrderCreate{
			Type:      req.Type,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			BBox:      req.BBox,
		})
		if err != nil {
			if errors.Is(err, storage.ErrStorageUnreachable) {
				response.Error(w, http.StatusBadGateway, "STORAGE_UNAVAILABLE", "The storage service is not available", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		payload := map[string]any{
			"type":       req.Type,
			"start_date": req.StartDate,
			"end_date":   req.EndDate,
			"bbox":       req.BBox,
		}
		if err := pub.PublishOrder(r.Context(), created.ID, payload); err != nil {
			response.Error(w, http.StatusBadGateway, "PUBLISH_FAILED", "Could not enqueue the order", nil)
			return
		}

		response.Created(w, map[string]any{
			"orderId": created.ID,
			"sseUrl":  fmt.Sprintf("/api/v1/orders/%s/events", created.ID),
		})
	}
}
