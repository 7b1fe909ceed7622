package models

import "encoding/json"

// Feature is the normalized shape every provider archive result is mapped
// into, regardless of the provider's own response format.
type Feature struct {
	ID       string            `json:"id"`
	Datetime string            `json:"datetime,omitempty"`
	BBox     []float64         `json:"bbox,omitempty"`
	Assets   map[string]string `json:"assets"`
	Metadata FeatureMetadata   `json:"metadata"`
}

// FeatureMetadata carries the lightweight per-feature metadata providers
// expose when available.
type FeatureMetadata struct {
	CloudCover *float64 `json:"cloud_cover"`
	Platform   string   `json:"platform,omitempty"`
}

// Opportunity is one feasibility opportunity descriptor returned by a
// tasking-capable provider. The payload is provider-specific and passed
// through untouched.
type Opportunity struct {
	ID          string          `json:"id,omitempty"`
	WindowStart string          `json:"windowStartAt,omitempty"`
	WindowEnd   string          `json:"windowEndAt,omitempty"`
	Properties  json.RawMessage `json:"properties,omitempty"`
}

// TaskDescriptor describes a provider-side tasking order created for a
// future collection.
type TaskDescriptor struct {
	ID         string          `json:"id"`
	Status     string          `json:"status,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}
