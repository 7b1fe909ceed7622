package umbra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/provider/stac"
	"github.com/satwatch-io/satwatch/pkg/models"
)

const archiveLimit = 10

// Provider implements models.ImageryProvider against the Umbra Canopy API.
// The only adapter with real feasibility and tasking support; feasibility
// is an asynchronous protocol driven to completion by the Poller.
type Provider struct {
	cfg    config.UmbraConfig
	client *http.Client
	poller *Poller
}

func NewProvider(cfg config.UmbraConfig, pollInterval time.Duration, pollAttempts int) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("umbra token not provided")
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		poller: &Poller{Interval: pollInterval, MaxAttempts: pollAttempts},
	}, nil
}

func (p *Provider) Name() string { return "Umbra" }

func (p *Provider) Capabilities() models.Capability {
	return models.CapArchive | models.CapFeasibility | models.CapTasking
}

func (p *Provider) SearchArchive(ctx context.Context, startDate, endDate string, bbox []float64) ([]models.Feature, error) {
	slog.Info("searching archive", "provider", p.Name(), "bbox", bbox)

	feats, err := stac.Search(ctx, p.client, fmt.Sprintf("%s/v2/stac/search", p.cfg.BaseURL), p.authHeaders(), stac.SearchRequest{
		Collections: []string{"umbra:imagery"},
		BBox:        bbox,
		Datetime:    stac.DatetimeRange(startDate, endDate),
		Limit:       archiveLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("umbra archive search: %w", err)
	}

	results := make([]models.Feature, 0, len(feats))
	for _, f := range feats {
		results = append(results, stac.Format(f, nil))
	}
	return results, nil
}

// SearchFeasibility submits a spotlight feasibility request and polls it to
// a terminal state. The request transitions SUBMITTED to POLLING as soon as
// the submit call returns an id.
func (p *Provider) SearchFeasibility(ctx context.Context, startDate, endDate string, geometry models.Geometry) ([]models.Opportunity, error) {
	slog.Info("checking feasibility", "provider", p.Name(), "geometry", geometry.Coordinates)

	id, err := p.submitFeasibility(ctx, startDate, endDate, geometry)
	if err != nil {
		return nil, err
	}

	return p.poller.Await(ctx, id, func(ctx context.Context) (PollResult, error) {
		return p.checkFeasibility(ctx, id)
	})
}

// CreateTask schedules a spotlight collection for the given window.
func (p *Provider) CreateTask(ctx context.Context, startDate, endDate string, geometry models.Geometry) (*models.TaskDescriptor, error) {
	slog.Info("creating task", "provider", p.Name(), "geometry", geometry.Coordinates)

	body := taskingPayload(startDate, endDate, geometry)
	body["taskName"] = "satwatch-task"

	raw, err := p.post(ctx, fmt.Sprintf("%s/tasking/tasks", p.cfg.BaseURL), body)
	if err != nil {
		return nil, fmt.Errorf("umbra create task: %w", err)
	}

	var task models.TaskDescriptor
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decoding task response: %w", err)
	}
	if task.Properties == nil {
		task.Properties = raw
	}
	return &task, nil
}

func (p *Provider) submitFeasibility(ctx context.Context, startDate, endDate string, geometry models.Geometry) (string, error) {
	raw, err := p.post(ctx, fmt.Sprintf("%s/tasking/feasibilities", p.cfg.BaseURL), taskingPayload(startDate, endDate, geometry))
	if err != nil {
		return "", fmt.Errorf("umbra submit feasibility: %w", err)
	}

	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &submitted); err != nil {
		return "", fmt.Errorf("decoding feasibility response: %w", err)
	}
	if submitted.ID == "" {
		return "", fmt.Errorf("feasibility response missing id")
	}
	return submitted.ID, nil
}

func (p *Provider) checkFeasibility(ctx context.Context, id string) (PollResult, error) {
	u := fmt.Sprintf("%s/tasking/feasibilities/%s", p.cfg.BaseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("building status request: %w", err)
	}
	for k, v := range p.authHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PollResult{}, fmt.Errorf("umbra feasibility status: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return PollResult{}, fmt.Errorf("reading status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return PollResult{}, fmt.Errorf("umbra feasibility status: status %d", resp.StatusCode)
	}

	var doc struct {
		Status        string               `json:"status"`
		Opportunities []models.Opportunity `json:"opportunities"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PollResult{}, fmt.Errorf("decoding status response: %w", err)
	}

	return PollResult{
		Status:        FeasibilityStatus(doc.Status),
		Opportunities: doc.Opportunities,
		Payload:       raw,
	}, nil
}

func (p *Provider) post(ctx context.Context, url string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.authHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func (p *Provider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.Token}
}

// taskingPayload is the SPOTLIGHT constraint set shared by feasibility and
// task creation.
func taskingPayload(startDate, endDate string, geometry models.Geometry) map[string]any {
	return map[string]any{
		"imagingMode": "SPOTLIGHT",
		"spotlightConstraints": map[string]any{
			"geometry":                       geometry,
			"polarization":                   "VV",
			"rangeResolutionMinMeters":       1,
			"multilookFactor":                1,
			"grazingAngleMinDegrees":         30,
			"grazingAngleMaxDegrees":         70,
			"targetAzimuthAngleStartDegrees": 0,
			"targetAzimuthAngleEndDegrees":   360,
		},
		"windowStartAt": startDate,
		"windowEndAt":   endDate,
	}
}

var _ models.ImageryProvider = (*Provider)(nil)
