package planetary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/provider/stac"
	"github.com/satwatch-io/satwatch/pkg/models"
)

const searchLimit = 5

// Major EO + SAR collections Planetary Computer hosts.
var collections = []string{
	"sentinel-2-l2a",
	"landsat-8-c2-l2",
	"landsat-9-c2-l2",
	"sentinel-1-grd",
}

// Provider implements models.ImageryProvider against the Microsoft
// Planetary Computer STAC API. Asset hrefs are signed through the SAS
// endpoint; a failed signing degrades to the unsigned href rather than
// failing the feature.
type Provider struct {
	cfg    config.PlanetaryConfig
	client *http.Client
}

func NewProvider(cfg config.PlanetaryConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "PlanetaryComputer" }

func (p *Provider) Capabilities() models.Capability { return models.CapArchive }

func (p *Provider) SearchArchive(ctx context.Context, startDate, endDate string, bbox []float64) ([]models.Feature, error) {
	slog.Info("searching archive", "provider", p.Name(), "bbox", bbox)

	feats, err := stac.Search(ctx, p.client, fmt.Sprintf("%s/stac/v1/search", p.cfg.BaseURL), nil, stac.SearchRequest{
		Collections: collections,
		BBox:        bbox,
		Datetime:    stac.DatetimeRange(startDate, endDate),
		Limit:       searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("planetary computer archive search: %w", err)
	}

	results := make([]models.Feature, 0, len(feats))
	for _, f := range feats {
		signed := make(map[string]string, len(f.Assets))
		for name, a := range f.Assets {
			href, err := p.signAsset(ctx, a.Href)
			if err != nil {
				href = a.Href
			}
			signed[name] = href
		}
		results = append(results, stac.Format(f, signed))
	}
	return results, nil
}

func (p *Provider) SearchFeasibility(_ context.Context, _, _ string, _ models.Geometry) ([]models.Opportunity, error) {
	return []models.Opportunity{}, nil
}

func (p *Provider) CreateTask(_ context.Context, _, _ string, _ models.Geometry) (*models.TaskDescriptor, error) {
	return nil, nil
}

// signAsset resolves a pre-signed href through the SAS sign endpoint.
func (p *Provider) signAsset(ctx context.Context, href string) (string, error) {
	u := fmt.Sprintf("%s/sas/v1/sign?href=%s", p.cfg.BaseURL, url.QueryEscape(href))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building sign request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signing asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signing asset: status %d", resp.StatusCode)
	}

	var signed struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("decoding sign response: %w", err)
	}
	if signed.Href == "" {
		return "", fmt.Errorf("sign response missing href")
	}
	return signed.Href, nil
}

var _ models.ImageryProvider = (*Provider)(nil)
