package models

import (
	"fmt"
	"time"
)

// Job types accepted by the worker.
const (
	JobTypeSearch = "search"
	JobTypeTask   = "task"
)

// JobRequest is the validated body of a consumed order message. It is
// constructed once per message and never mutated afterwards.
type JobRequest struct {
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	BBox      []float64 `json:"bbox"`
}

// Window parses the request's RFC3339 time window.
func (r JobRequest) Window() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing start_date: %w", err)
	}
	end, err = time.Parse(time.RFC3339, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing end_date: %w", err)
	}
	return start, end, nil
}

// CenterPoint derives a point geometry from the bbox center, used for
// feasibility and tasking calls.
func (r JobRequest) CenterPoint() Geometry {
	if len(r.BBox) < 4 {
		return Geometry{Type: "Point", Coordinates: []float64{0, 0}}
	}
	lon := (r.BBox[0] + r.BBox[2]) / 2
	lat := (r.BBox[1] + r.BBox[3]) / 2
	return Geometry{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Geometry is a minimal GeoJSON geometry.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}
