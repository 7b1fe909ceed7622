package mock

import (
	"context"

	"github.com/satwatch-io/satwatch/pkg/models"
)

// MockProvider satisfies models.ImageryProvider for testing.
type MockProvider struct {
	Name_           string
	Caps            models.Capability
	ArchiveFunc     func(ctx context.Context, startDate, endDate string, bbox []float64) ([]models.Feature, error)
	FeasibilityFunc func(ctx context.Context, startDate, endDate string, geometry models.Geometry) ([]models.Opportunity, error)
	TaskFunc        func(ctx context.Context, startDate, endDate string, geometry models.Geometry) (*models.TaskDescriptor, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Capabilities() models.Capability { return m.Caps }

func (m *MockProvider) SearchArchive(ctx context.Context, startDate, endDate string, bbox []float64) ([]models.Feature, error) {
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, startDate, endDate, bbox)
	}
	return []models.Feature{}, nil
}

func (m *MockProvider) SearchFeasibility(ctx context.Context, startDate, endDate string, geometry models.Geometry) ([]models.Opportunity, error) {
	if m.FeasibilityFunc != nil {
		return m.FeasibilityFunc(ctx, startDate, endDate, geometry)
	}
	return []models.Opportunity{}, nil
}

func (m *MockProvider) CreateTask(ctx context.Context, startDate, endDate string, geometry models.Geometry) (*models.TaskDescriptor, error) {
	if m.TaskFunc != nil {
		return m.TaskFunc(ctx, startDate, endDate, geometry)
	}
	return nil, nil
}

// NewArchiveProvider returns a mock with archive capability and canned
// features.
func NewArchiveProvider(name string, features []models.Feature) *MockProvider {
	return &MockProvider{
		Name_: name,
		Caps:  models.CapArchive,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			return features, nil
		},
	}
}

// NewFailingProvider returns a mock whose every capability returns err.
func NewFailingProvider(name string, err error) *MockProvider {
	return &MockProvider{
		Name_: name,
		Caps:  models.CapArchive | models.CapFeasibility | models.CapTasking,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			return nil, err
		},
		FeasibilityFunc: func(_ context.Context, _, _ string, _ models.Geometry) ([]models.Opportunity, error) {
			return nil, err
		},
		TaskFunc: func(_ context.Context, _, _ string, _ models.Geometry) (*models.TaskDescriptor, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockProvider implements ImageryProvider.
var _ models.ImageryProvider = (*MockProvider)(nil)
