package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/stretchr/testify/require"
)

var testSettings = Settings{
	SwitchInterval:    25 * time.Millisecond,
	StatusInterval:    10 * time.Millisecond,
	InitRetryInterval: 5 * time.Millisecond,
}

var errFetch = errors.New("stats unreachable")

type fakeSource struct {
	mu        sync.Mutex
	payrates  mining.PayRates
	stratums  mining.Stratums
	failFirst int // fail this many initial fetches
	failFrom  int // fail every fetch after this many, 0 = never
	fetches   int
}

func (s *fakeSource) Fetch(ctx context.Context) (mining.PayRates, mining.Stratums, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetches <= s.failFirst {
		return nil, nil, errFetch
	}
	if s.failFrom > 0 && s.fetches > s.failFrom {
		return nil, nil, errFetch
	}
	return s.payrates.Copy(), s.stratums, nil
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeEngine struct {
	mu      sync.Mutex
	id      string
	algos   []*fakeAlgorithm
	running bool
	loads   int
	unloads int
	reloads int
	rec     *recorder
}

func newFakeEngine(id string, rec *recorder, algos ...mining.AlgorithmInfo) *fakeEngine {
	e := &fakeEngine{id: id, rec: rec}
	for _, info := range algos {
		e.algos = append(e.algos, &fakeAlgorithm{engine: e, info: info})
	}
	return e
}

func (e *fakeEngine) ID() string { return e.id }

func (e *fakeEngine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
	e.running = true
	return nil
}

func (e *fakeEngine) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloads++
	e.running = false
	e.rec.add("unload:" + e.id)
	return nil
}

func (e *fakeEngine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloads++
	e.running = true
	return nil
}

func (e *fakeEngine) IsRunning(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *fakeEngine) Algorithms() []miners.Algorithm {
	out := make([]miners.Algorithm, len(e.algos))
	for i, a := range e.algos {
		out[i] = a
	}
	return out
}

func (e *fakeEngine) SetStratums(stratums mining.Stratums) {}

func (e *fakeEngine) crash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

func (e *fakeEngine) counts() (loads, unloads, reloads int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads, e.unloads, e.reloads
}

type fakeAlgorithm struct {
	mu      sync.Mutex
	engine  *fakeEngine
	info    mining.AlgorithmInfo
	devices []mining.Device
	speeds  []float64
}

func (a *fakeAlgorithm) Name() string               { return a.info.Name }
func (a *fakeAlgorithm) Info() mining.AlgorithmInfo { return a.info }
func (a *fakeAlgorithm) Miner() miners.Miner        { return a.engine }

func (a *fakeAlgorithm) SetDevices(ctx context.Context, devices []mining.Device) error {
	a.mu.Lock()
	a.devices = devices
	a.mu.Unlock()
	a.engine.rec.add(fmt.Sprintf("setdevices:%s:%d", a.info.Name, len(devices)))
	return nil
}

func (a *fakeAlgorithm) CurrentSpeeds(ctx context.Context) ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.speeds == nil {
		return make([]float64, len(a.info.SubAlgorithms)), nil
	}
	return a.speeds, nil
}

func (a *fakeAlgorithm) currentDevices() []mining.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]mining.Device, len(a.devices))
	copy(out, a.devices)
	return out
}

type fakeSink struct {
	mu        sync.Mutex
	snapshots []mining.StatusSnapshot
}

func (s *fakeSink) OnMiningStatus(snapshot mining.StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *fakeSink) last() mining.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[len(s.snapshots)-1]
}

type staticPolicy struct {
	assignment mining.Assignment
}

func (p *staticPolicy) Reset() {}

func (p *staticPolicy) Decide(revenues mining.RevenueTable, now time.Time) mining.Assignment {
	out := make(mining.Assignment, len(p.assignment))
	for k, v := range p.assignment {
		out[k] = v
	}
	return out
}

func startOrchestrator(t *testing.T, o *Orchestrator) {
	t.Helper()
	go func() {
		_ = o.Run(context.Background())
	}()
	require.Eventually(t, func() bool { return o.State() == StateRunning },
		2*time.Second, time.Millisecond)
}

func TestOrchestratorAppliesInverseImageOfAssignment(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}, {ID: "device2"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec,
		mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}},
		mining.AlgorithmInfo{Name: "Y", SubAlgorithms: []string{"B"}},
	)
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0, "B": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X", "device2": "Y"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)
	defer o.Stop()

	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, time.Millisecond)

	require.Equal(t, []mining.Device{{ID: "device1"}}, engine.algos[0].currentDevices())
	require.Equal(t, []mining.Device{{ID: "device2"}}, engine.algos[1].currentDevices())
	require.Equal(t, mining.Assignment{"device1": "X", "device2": "Y"}, o.Assignment())
}

func TestNoSnapshotAfterStopReturns(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)

	require.Eventually(t, func() bool { return sink.count() >= 2 }, 2*time.Second, time.Millisecond)

	o.Stop()
	after := sink.count()

	time.Sleep(5 * testSettings.StatusInterval)
	require.Equal(t, after, sink.count())
	require.Equal(t, StateTerminated, o.State())
}

func TestShutdownReleasesDevicesBeforeUnload(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)

	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, time.Millisecond)
	o.Stop()

	events := rec.list()
	release := -1
	unload := -1
	for i, e := range events {
		if e == "setdevices:X:0" {
			release = i
		}
		if e == "unload:fake" && unload == -1 {
			unload = i
		}
	}
	require.NotEqual(t, -1, release, "devices never released: %v", events)
	require.NotEqual(t, -1, unload, "engine never unloaded: %v", events)
	require.Less(t, release, unload, "devices must be released before unload: %v", events)
}

func TestStopIsIdempotent(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)

	o.Stop()
	o.Stop()

	_, unloads, _ := engine.counts()
	require.Equal(t, 1, unloads)
	require.Equal(t, StateTerminated, o.State())
}

func TestFetchFailureKeepsPreviousPayrates(t *testing.T) {
	var logBuf bytes.Buffer
	log, err := lib.NewLoggerMemory("debug", false, false, false, "", &logBuf)
	require.NoError(t, err)

	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	engine.algos[0].speeds = []float64{10}
	sink := &fakeSink{}
	// one successful fetch for init, one for the first switch cycle, then failures
	source := &fakeSource{payrates: mining.PayRates{"A": 2.0}, failFrom: 2}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, log)
	startOrchestrator(t, o)
	defer o.Stop()

	// wait until at least one failed switch cycle completed and kept polling
	require.Eventually(t, func() bool { return source.fetchCount() >= 4 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, time.Millisecond)

	// revenue still computed from the last known payrates
	last := sink.last()
	require.Len(t, last.Algorithms, 1)
	require.InDelta(t, 20.0, last.Algorithms[0].Revenue, 1e-9)

	require.Contains(t, logBuf.String(), "keeping previous payrates")
}

func TestCrashedEngineIsReloaded(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)
	defer o.Stop()

	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, time.Millisecond)

	before := sink.count()
	engine.crash()

	require.Eventually(t, func() bool {
		_, _, reloads := engine.counts()
		return reloads == 1
	}, 2*time.Second, time.Millisecond)

	// the cycle completed and polling goes on
	require.Eventually(t, func() bool { return sink.count() > before }, 2*time.Second, time.Millisecond)
}

func TestInitialFetchRetriesUntilSuccess(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}, failFirst: 3}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())
	startOrchestrator(t, o)
	defer o.Stop()

	require.GreaterOrEqual(t, source.fetchCount(), 4)
	loads, _, _ := engine.counts()
	require.Equal(t, 1, loads)
}

func TestStopDuringInitializationLoadsNothing(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}, failFirst: 1 << 30}
	policy := &staticPolicy{assignment: mining.Assignment{}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()

	require.Eventually(t, func() bool { return o.State() == StateInitializing }, 2*time.Second, time.Millisecond)
	o.Stop()

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop during initialization")
	}

	loads, _, _ := engine.counts()
	require.Equal(t, 0, loads)
	require.Equal(t, 0, sink.count())
}

func TestContextCancelTriggersOrderlyShutdown(t *testing.T) {
	devices := []mining.Device{{ID: "device1"}}
	rec := &recorder{}
	engine := newFakeEngine("fake", rec, mining.AlgorithmInfo{Name: "X", SubAlgorithms: []string{"A"}})
	sink := &fakeSink{}
	source := &fakeSource{payrates: mining.PayRates{"A": 1.0}}
	policy := &staticPolicy{assignment: mining.Assignment{"device1": "X"}}

	o := New(testSettings, devices, mining.BenchmarkTable{}, source, policy, []miners.Miner{engine}, sink, lib.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(ctx) }()
	require.Eventually(t, func() bool { return o.State() == StateRunning }, 2*time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after context cancellation")
	}

	_, unloads, _ := engine.counts()
	require.Equal(t, 1, unloads)

	// shutdown order holds on the cancellation path too
	events := strings.Join(rec.list(), ",")
	require.Less(t, strings.Index(events, "setdevices:X:0"), strings.Index(events, "unload:fake"))
}
