package copernicus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/provider/stac"
	"github.com/satwatch-io/satwatch/pkg/models"
)

const searchLimit = 5

// Provider implements models.ImageryProvider against the Copernicus Data
// Space STAC API. Archive search only; feasibility and tasking are no-ops.
type Provider struct {
	cfg    config.CopernicusConfig
	client *http.Client
}

func NewProvider(cfg config.CopernicusConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "Copernicus" }

func (p *Provider) Capabilities() models.Capability { return models.CapArchive }

func (p *Provider) SearchArchive(ctx context.Context, startDate, endDate string, bbox []float64) ([]models.Feature, error) {
	slog.Info("searching archive", "provider", p.Name(), "bbox", bbox)

	feats, err := stac.Search(ctx, p.client, fmt.Sprintf("%s/search", p.cfg.BaseURL), nil, stac.SearchRequest{
		BBox:     bbox,
		Datetime: stac.DatetimeRange(startDate, endDate),
		Limit:    searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("copernicus archive search: %w", err)
	}

	results := make([]models.Feature, 0, len(feats))
	for _, f := range feats {
		results = append(results, stac.Format(f, nil))
	}
	return results, nil
}

func (p *Provider) SearchFeasibility(_ context.Context, _, _ string, _ models.Geometry) ([]models.Opportunity, error) {
	return []models.Opportunity{}, nil
}

func (p *Provider) CreateTask(_ context.Context, _, _ string, _ models.Geometry) (*models.TaskDescriptor, error) {
	return nil, nil
}

var _ models.ImageryProvider = (*Provider)(nil)
