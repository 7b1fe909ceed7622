// Package stac holds the shared pieces of the STAC search protocol the
// archive-capable providers speak: request/response shapes and the
// normalization of raw features into the common Feature form.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/satwatch-io/satwatch/pkg/models"
)

// SearchRequest is the POST body for a STAC item search.
type SearchRequest struct {
	Collections []string  `json:"collections,omitempty"`
	BBox        []float64 `json:"bbox"`
	Datetime    string    `json:"datetime"`
	Limit       int       `json:"limit"`
}

// Feature is a raw STAC feature as returned by a provider.
type Feature struct {
	ID         string           `json:"id"`
	BBox       []float64        `json:"bbox"`
	Properties Properties       `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

type Properties struct {
	Datetime   string   `json:"datetime"`
	CloudCover *float64 `json:"eo:cloud_cover"`
	Platform   string   `json:"platform"`
}

type Asset struct {
	Href string `json:"href"`
}

type searchResponse struct {
	Features []Feature `json:"features"`
}

// DatetimeRange renders a STAC datetime interval from two RFC3339 dates.
func DatetimeRange(startDate, endDate string) string {
	return fmt.Sprintf("%s/%s", startDate, endDate)
}

// Search POSTs a STAC item search and decodes the feature collection.
// Extra headers (auth tokens) are applied to the request as given.
func Search(ctx context.Context, client *http.Client, url string, headers map[string]string, req SearchRequest) ([]Feature, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stac search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stac search: status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding stac response: %w", err)
	}
	return sr.Features, nil
}

// Format normalizes a raw STAC feature into the common shape. When
// signedAssets is non-nil it replaces the asset map wholesale; otherwise
// the unsigned hrefs are used.
func Format(feat Feature, signedAssets map[string]string) models.Feature {
	assets := signedAssets
	if assets == nil {
		assets = make(map[string]string, len(feat.Assets))
		for name, a := range feat.Assets {
			assets[name] = a.Href
		}
	}

	return models.Feature{
		ID:       feat.ID,
		Datetime: feat.Properties.Datetime,
		BBox:     feat.BBox,
		Assets:   assets,
		Metadata: models.FeatureMetadata{
			CloudCover: feat.Properties.CloudCover,
			Platform:   feat.Properties.Platform,
		},
	}
}
