package models

import "context"

// Capability is the set of operations a provider actually supports.
// Unsupported capabilities are no-ops by contract, not errors.
type Capability uint8

const (
	CapArchive Capability = 1 << iota
	CapFeasibility
	CapTasking
)

// Has reports whether c includes every capability in want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// ImageryProvider is the capability contract every provider adapter
// implements. Dates are RFC3339 strings, passed through to the provider's
// API untouched.
//
// SearchArchive returns an empty slice, never nil, when no results match.
// SearchFeasibility returns an empty slice for providers without real
// feasibility support. CreateTask returns nil for providers without tasking.
type ImageryProvider interface {
	Name() string
	Capabilities() Capability
	SearchArchive(ctx context.Context, startDate, endDate string, bbox []float64) ([]Feature, error)
	SearchFeasibility(ctx context.Context, startDate, endDate string, geometry Geometry) ([]Opportunity, error)
	CreateTask(ctx context.Context, startDate, endDate string, geometry Geometry) (*TaskDescriptor, error)
}
