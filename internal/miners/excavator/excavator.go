package excavator

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/mining"
	"go.uber.org/atomic"
)

const (
	startupTimeout  = 30 * time.Second
	startupInterval = 500 * time.Millisecond
	quitTimeout     = 10 * time.Second
)

// algorithmSpecs lists the algorithms this excavator build can run, with
// sub-algorithms in the order excavator reports their speeds
var algorithmSpecs = []mining.AlgorithmInfo{
	{Name: "equihash", SubAlgorithms: []string{"equihash"}},
	{Name: "pascal", SubAlgorithms: []string{"pascal"}},
	{Name: "decred", SubAlgorithms: []string{"decred"}},
	{Name: "daggerhashimoto", SubAlgorithms: []string{"daggerhashimoto"}},
	{Name: "lyra2rev2", SubAlgorithms: []string{"lyra2rev2"}},
	{Name: "cryptonight", SubAlgorithms: []string{"cryptonight"}},
	{Name: "keccak", SubAlgorithms: []string{"keccak"}},
	{Name: "neoscrypt", SubAlgorithms: []string{"neoscrypt"}},
	{Name: "nist5", SubAlgorithms: []string{"nist5"}},
	{Name: "daggerhashimoto_decred", SubAlgorithms: []string{"daggerhashimoto", "decred"}},
	{Name: "daggerhashimoto_pascal", SubAlgorithms: []string{"daggerhashimoto", "pascal"}},
}

// Excavator drives the external excavator process through its TCP command API
type Excavator struct {
	// config
	binPath string
	apiHost string
	apiPort int
	wallet  string
	worker  string

	// state
	mu        sync.Mutex
	cmd       *exec.Cmd
	exited    *atomic.Bool
	stratums  mining.Stratums
	deviceIDs map[mining.DeviceID]int

	// deps
	api        *apiClient
	algorithms []*Algorithm
	log        interfaces.ILogger
}

func New(binPath, apiHost string, apiPort int, wallet, worker string, log interfaces.ILogger) *Excavator {
	e := &Excavator{
		binPath: binPath,
		apiHost: apiHost,
		apiPort: apiPort,
		wallet:  wallet,
		worker:  worker,
		exited:  atomic.NewBool(true),
		api:     newAPIClient(fmt.Sprintf("%s:%d", apiHost, apiPort)),
		log:     log,
	}
	for _, spec := range algorithmSpecs {
		e.algorithms = append(e.algorithms, newAlgorithm(e, spec))
	}
	return e
}

func (e *Excavator) ID() string {
	return "excavator"
}

func (e *Excavator) Algorithms() []miners.Algorithm {
	out := make([]miners.Algorithm, len(e.algorithms))
	for i, a := range e.algorithms {
		out[i] = a
	}
	return out
}

func (e *Excavator) SetStratums(stratums mining.Stratums) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stratums = stratums
}

// Load starts the excavator process and waits for its command API to come up
func (e *Excavator) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx)
}

func (e *Excavator) load(ctx context.Context) error {
	// process lifetime is owned by Unload, not by the context
	cmd := exec.Command(e.binPath, "-i", e.apiHost, "-p", fmt.Sprint(e.apiPort))
	if err := cmd.Start(); err != nil {
		return err
	}

	e.cmd = cmd
	exited := atomic.NewBool(false)
	e.exited = exited
	go func() {
		_ = cmd.Wait()
		exited.Store(true)
	}()

	if err := e.awaitAPI(ctx); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	devices, err := e.listDevices()
	if err != nil {
		_ = cmd.Process.Kill()
		return err
	}
	e.deviceIDs = devices

	e.log.Infof("excavator started, pid %d, %d devices visible", cmd.Process.Pid, len(devices))
	return nil
}

func (e *Excavator) awaitAPI(ctx context.Context) error {
	deadline := time.Now().Add(startupTimeout)
	for {
		err := e.api.call("info", nil, nil)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return lib.WrapError(miners.ErrNotRunning, fmt.Errorf("api did not come up within %s: %w", startupTimeout, err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupInterval):
		}
	}
}

type deviceListResponse struct {
	Devices []struct {
		DeviceID int    `json:"device_id"`
		UUID     string `json:"uuid"`
	} `json:"devices"`
}

func (e *Excavator) listDevices() (map[mining.DeviceID]int, error) {
	var resp deviceListResponse
	if err := e.api.call("device.list", nil, &resp); err != nil {
		return nil, err
	}

	ids := make(map[mining.DeviceID]int, len(resp.Devices))
	for _, d := range resp.Devices {
		ids[mining.DeviceID(d.UUID)] = d.DeviceID
	}
	return ids, nil
}

// IsRunning reports whether the engine process is alive. It does not probe the
// command API; a wedged process is caught by the first failing command
func (e *Excavator) IsRunning(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil && !e.exited.Load()
}

// Reload restarts a crashed engine and restores the workers of every algorithm
// that held devices before the crash
func (e *Excavator) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.kill()
	if err := e.load(ctx); err != nil {
		return err
	}

	for _, algo := range e.algorithms {
		if err := algo.restore(); err != nil {
			e.log.Errorf("failed to restore %s after reload: %s", algo.Name(), err)
		}
	}
	return nil
}

// Unload asks the engine to quit and kills it if it does not comply in time
func (e *Excavator) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return nil
	}

	err := e.api.call("quit", nil, nil)
	if err == nil {
		deadline := time.Now().Add(quitTimeout)
		for !e.exited.Load() && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
	}

	e.kill()

	for _, algo := range e.algorithms {
		algo.forget()
	}
	return nil
}

func (e *Excavator) kill() {
	if e.cmd != nil && !e.exited.Load() {
		_ = e.cmd.Process.Kill()
	}
	e.cmd = nil
}

// stratums and deviceIDs are only touched from the orchestration loop, which
// runs Load, SetStratums and all algorithm calls sequentially, so the helpers
// below take no lock

func (e *Excavator) stratumFor(info mining.AlgorithmInfo) string {
	// dual algorithms share the primary sub-algorithm's stratum
	return e.stratums[info.SubAlgorithms[0]]
}

func (e *Excavator) auth() string {
	return e.wallet + "." + e.worker
}

func (e *Excavator) excavatorDeviceID(id mining.DeviceID) (int, bool) {
	devID, ok := e.deviceIDs[id]
	return devID, ok
}
