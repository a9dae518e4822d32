package devices

import (
	"context"

	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/mining"
	"golang.org/x/sync/errgroup"
)

// Provider enumerates the compute devices available for mining. Enumeration
// happens once, before the orchestrator starts
type Provider interface {
	EnumerateDevices(ctx context.Context) ([]mining.Device, error)
}

// Merged queries several providers and concatenates their devices. A provider
// failure is logged and skipped so that one missing vendor stack does not
// block mining on the others
type Merged struct {
	providers []Provider
	log       interfaces.ILogger
}

func NewMerged(log interfaces.ILogger, providers ...Provider) *Merged {
	return &Merged{
		providers: providers,
		log:       log,
	}
}

func (m *Merged) EnumerateDevices(ctx context.Context) ([]mining.Device, error) {
	results := make([][]mining.Device, len(m.providers))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		i, p := i, p
		g.Go(func() error {
			devices, err := p.EnumerateDevices(ctx)
			if err != nil {
				m.log.Warnf("device enumeration failed: %s", err)
				return nil
			}
			results[i] = devices
			return nil
		})
	}
	_ = g.Wait()

	// provider order is stable so device IDs keep a deterministic ordering
	var all []mining.Device
	for _, devices := range results {
		all = append(all, devices...)
	}
	return all, nil
}
