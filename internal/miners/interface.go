package miners

import (
	"context"
	"errors"

	"github.com/r1k0/nuxhash/internal/mining"
)

var ErrNotRunning = errors.New("miner is not running")

// Algorithm is a handle to one mining job inside a running engine. The
// orchestration loop is the only caller of SetDevices
type Algorithm interface {
	Name() string
	Info() mining.AlgorithmInfo
	SetDevices(ctx context.Context, devices []mining.Device) error
	CurrentSpeeds(ctx context.Context) ([]float64, error)
	Miner() Miner
}

// Miner manages one external mining engine process and exposes the algorithms
// it can run. The engine set is fixed at process start
type Miner interface {
	ID() string
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
	Reload(ctx context.Context) error
	IsRunning(ctx context.Context) bool
	Algorithms() []Algorithm
	SetStratums(stratums mining.Stratums)
}
