package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/r1k0/nuxhash/internal/switching"
	"go.uber.org/atomic"
	"golang.org/x/exp/slices"
)

type State int32

const (
	StateCreated State = iota
	StateInitializing
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultInitRetryInterval is how long the orchestrator waits before
// retrying the initial profitability fetch
const DefaultInitRetryInterval = 5 * time.Second

var errStopRequested = errors.New("stop requested")

// ProfitabilityDataSource supplies current payrates and stratum endpoints
type ProfitabilityDataSource interface {
	Fetch(ctx context.Context) (mining.PayRates, mining.Stratums, error)
}

// StatusSink receives one immutable snapshot per status poll cycle
type StatusSink interface {
	OnMiningStatus(snapshot mining.StatusSnapshot)
}

var _ interfaces.Runnable = (*Orchestrator)(nil)

// Settings is the orchestrator's configuration, captured as an immutable
// snapshot at start. Edits to the live configuration apply to the next start
type Settings struct {
	SwitchInterval    time.Duration
	StatusInterval    time.Duration
	InitRetryInterval time.Duration
}

// Orchestrator owns the mining loop: it loads the engines, then runs profit
// switching and status polling as cooperative jobs on a single goroutine, so
// payrates, the assignment and every algorithm's device set have exactly one
// writer at a time
type Orchestrator struct {
	// immutable for the lifetime of the run
	settings   Settings
	devices    []mining.Device
	benchmarks mining.BenchmarkTable

	// deps
	source ProfitabilityDataSource
	policy switching.Policy
	miners []miners.Miner
	sink   StatusSink
	sched  *Scheduler
	log    interfaces.ILogger

	// loop-owned state, mutated only from scheduled jobs
	runCtx      context.Context
	algorithms  []miners.Algorithm
	algosByName map[string]miners.Algorithm
	payrates    mining.PayRates
	ratesTime   time.Time

	// current assignment, written by the loop, readable from outside
	assignMu   sync.RWMutex
	assignment mining.Assignment

	state         *atomic.Int32
	stopRequested *atomic.Bool
	stopCh        chan struct{}
	done          chan struct{}
}

func New(
	settings Settings,
	devices []mining.Device,
	benchmarks mining.BenchmarkTable,
	source ProfitabilityDataSource,
	policy switching.Policy,
	engines []miners.Miner,
	sink StatusSink,
	log interfaces.ILogger,
) *Orchestrator {
	return &Orchestrator{
		settings:      settings,
		devices:       slices.Clone(devices),
		benchmarks:    benchmarks.Copy(),
		source:        source,
		policy:        policy,
		miners:        engines,
		sink:          sink,
		sched:         NewScheduler(log.Named("SCHEDULER")),
		log:           log,
		state:         atomic.NewInt32(int32(StateCreated)),
		stopRequested: atomic.NewBool(false),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Assignment returns a copy of the current device-to-algorithm assignment
func (o *Orchestrator) Assignment() mining.Assignment {
	o.assignMu.RLock()
	defer o.assignMu.RUnlock()
	out := make(mining.Assignment, len(o.assignment))
	for k, v := range o.assignment {
		out[k] = v
	}
	return out
}

// setAssignment publishes a new assignment. The loop goroutine is the only
// caller; the lock is for external readers
func (o *Orchestrator) setAssignment(a mining.Assignment) {
	o.assignMu.Lock()
	o.assignment = a
	o.assignMu.Unlock()
}

// Run drives the whole orchestration lifecycle and blocks until shutdown has
// completed. It must be called exactly once
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)
	defer o.setState(StateTerminated)

	o.runCtx = ctx
	o.setState(StateInitializing)

	// engines cannot be configured without at least one payrate snapshot
	payrates, stratums, err := o.initialFetch(ctx)
	if err != nil {
		if errors.Is(err, errStopRequested) {
			return nil
		}
		return err
	}
	o.payrates, o.ratesTime = payrates, time.Now()

	if err := o.loadEngines(ctx, stratums); err != nil {
		return err
	}

	o.policy.Reset()
	o.setAssignment(mining.Assignment{})

	o.sched.Enter(0, PriorityProfitSwitch, o.switchAlgos)
	o.sched.Enter(0, PriorityStatus, o.readStatus)
	o.setState(StateRunning)

	// translate external cancellation into an orderly stop job
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			o.requestStop()
		case <-watchDone:
		}
	}()

	runErr := o.sched.Run(context.Background())
	close(watchDone)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return runErr
}

// Stop requests shutdown and blocks until the orchestration goroutine has
// fully terminated. Safe to call more than once
func (o *Orchestrator) Stop() {
	if o.State() == StateCreated {
		return
	}
	o.requestStop()
	<-o.done
}

func (o *Orchestrator) requestStop() {
	if !o.stopRequested.CompareAndSwap(false, true) {
		return
	}
	close(o.stopCh)
	o.sched.Enter(0, PriorityStop, o.stopMining)
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

func (o *Orchestrator) initialFetch(ctx context.Context) (mining.PayRates, mining.Stratums, error) {
	for {
		payrates, stratums, err := o.source.Fetch(ctx)
		if err == nil {
			return payrates, stratums, nil
		}

		o.log.Warnf("initial profitability fetch failed, retrying in %s: %s", o.settings.InitRetryInterval, err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-o.stopCh:
			return nil, nil, errStopRequested
		case <-time.After(o.settings.InitRetryInterval):
		}
	}
}

func (o *Orchestrator) loadEngines(ctx context.Context, stratums mining.Stratums) error {
	o.algosByName = map[string]miners.Algorithm{}

	for i, engine := range o.miners {
		engine.SetStratums(stratums)
		if err := engine.Load(ctx); err != nil {
			for _, loaded := range o.miners[:i] {
				_ = loaded.Unload(ctx)
			}
			return err
		}

		for _, algo := range engine.Algorithms() {
			o.algorithms = append(o.algorithms, algo)
			o.algosByName[algo.Name()] = algo
		}
	}
	return nil
}

// switchAlgos is the profit switch job: refresh payrates, recompute revenue,
// ask the policy for a new assignment and push it to the engines
func (o *Orchestrator) switchAlgos() {
	payrates, _, err := o.source.Fetch(o.runCtx)
	if err != nil {
		o.log.Warnf("profitability fetch failed, keeping previous payrates: %s", err)
	} else {
		o.payrates = payrates
		o.ratesTime = time.Now()
	}

	infos := make([]mining.AlgorithmInfo, len(o.algorithms))
	for i, algo := range o.algorithms {
		infos[i] = algo.Info()
	}
	revenues := mining.NewRevenueTable(o.devices, infos, o.benchmarks, o.payrates)

	o.setAssignment(o.policy.Decide(revenues, o.ratesTime))

	for _, algo := range o.algorithms {
		assigned := o.assignment.Devices(algo.Name(), o.devices)
		if err := algo.SetDevices(o.runCtx, assigned); err != nil {
			o.log.Errorf("failed to set devices of %s: %s", algo.Name(), err)
		}
	}

	o.sched.Enter(o.settings.SwitchInterval, PriorityProfitSwitch, o.switchAlgos)
}

// readStatus is the status poll job: restart crashed engines, collect speeds,
// compute live revenue and emit one snapshot
func (o *Orchestrator) readStatus() {
	snapshot := mining.StatusSnapshot{Time: time.Now()}

	active := o.assignment.Active()
	slices.Sort(active)

	for _, name := range active {
		algo := o.algosByName[name]
		engine := algo.Miner()

		if !engine.IsRunning(o.runCtx) {
			o.log.Errorf("detected %s crash, restarting miner", algo.Name())
			if err := engine.Reload(o.runCtx); err != nil {
				o.log.Errorf("failed to restart miner for %s: %s", algo.Name(), err)
			}
		}

		speeds, err := algo.CurrentSpeeds(o.runCtx)
		if err != nil {
			o.log.Errorf("failed to read speeds of %s: %s", algo.Name(), err)
			speeds = make([]float64, len(algo.Info().SubAlgorithms))
		}

		revenue := mining.SpeedRevenue(algo.Info(), speeds, o.payrates)
		snapshot.Algorithms = append(snapshot.Algorithms, mining.AlgorithmStatus{
			Algorithm:     name,
			SubAlgorithms: algo.Info().SubAlgorithms,
			Devices:       o.assignment.Devices(name, o.devices),
			Speeds:        speeds,
			Revenue:       revenue,
		})
		snapshot.TotalRevenue += revenue
	}

	o.sink.OnMiningStatus(snapshot)

	o.sched.Enter(o.settings.StatusInterval, PriorityStatus, o.readStatus)
}

// stopMining is the shutdown job: release all devices first so engines stop
// hashing, then tear the engines down, then drop whatever is still queued
func (o *Orchestrator) stopMining() {
	o.setState(StateStopping)
	o.log.Infof("stopping mining")

	o.setAssignment(mining.Assignment{})
	for _, algo := range o.algorithms {
		if err := algo.SetDevices(o.runCtx, nil); err != nil {
			o.log.Errorf("failed to release devices of %s: %s", algo.Name(), err)
		}
	}
	for _, engine := range o.miners {
		if err := engine.Unload(o.runCtx); err != nil {
			o.log.Errorf("failed to unload miner %s: %s", engine.ID(), err)
		}
	}

	o.sched.CancelAll()
}
