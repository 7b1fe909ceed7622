// Package provider wires the configured set of imagery provider adapters.
package provider

import (
	"fmt"

	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/provider/copernicus"
	"github.com/satwatch-io/satwatch/internal/provider/planetary"
	"github.com/satwatch-io/satwatch/internal/provider/umbra"
	"github.com/satwatch-io/satwatch/pkg/models"
)

// NewRegistry constructs the enabled provider adapters. Called once at
// startup; the returned slice is passed into the orchestrator so tests can
// substitute fakes without ambient global state.
func NewRegistry(cfg config.ProvidersConfig, worker config.WorkerConfig) ([]models.ImageryProvider, error) {
	providers := make([]models.ImageryProvider, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case "copernicus":
			providers = append(providers, copernicus.NewProvider(cfg.Copernicus))
		case "planetary":
			providers = append(providers, planetary.NewProvider(cfg.Planetary))
		case "umbra":
			p, err := umbra.NewProvider(cfg.Umbra, worker.FeasibilityInterval, worker.FeasibilityAttempts)
			if err != nil {
				return nil, fmt.Errorf("building umbra provider: %w", err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown provider %q: must be one of copernicus, planetary, umbra", name)
		}
	}
	return providers, nil
}
