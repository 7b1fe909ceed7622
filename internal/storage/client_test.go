package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satwatch-io/satwatch/internal/storage"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req storage.OrderCreate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "search", req.Type)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(storage.Order{ID: "ord-1", Type: req.Type})
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	order, err := c.CreateOrder(context.Background(), storage.OrderCreate{
		Type:      "search",
		StartDate: "2024-01-01T00:00:00Z",
		EndDate:   "2024-02-01T00:00:00Z",
		BBox:      []float64{0, 0, 1, 1},
	})

	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
}

func TestCreateOrder_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.CreateOrder(context.Background(), storage.OrderCreate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestCreateOrder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := storage.NewHTTPClient(srv.URL, time.Second)
	_, err := c.CreateOrder(context.Background(), storage.OrderCreate{})
	assert.ErrorIs(t, err, storage.ErrStorageUnreachable)
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/ord-1", r.URL.Path)
		json.NewEncoder(w).Encode(storage.Order{ID: "ord-1", Status: "pending"})
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	order, err := c.GetOrder(context.Background(), "ord-1")

	require.NoError(t, err)
	assert.Equal(t, "pending", order.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPing_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := storage.NewHTTPClient(srv.URL, 5*time.Second)
	assert.ErrorIs(t, c.Ping(context.Background()), storage.ErrStorageUnreachable)
}
