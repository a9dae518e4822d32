package excavator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/mining"
)

// Algorithm is a handle to one excavator algorithm instance. Worker state is
// only mutated from the orchestration loop
type Algorithm struct {
	parent  *Excavator
	info    mining.AlgorithmInfo
	added   bool
	devices []mining.Device
	workers map[mining.DeviceID]int
}

func newAlgorithm(parent *Excavator, info mining.AlgorithmInfo) *Algorithm {
	return &Algorithm{
		parent:  parent,
		info:    info,
		workers: map[mining.DeviceID]int{},
	}
}

func (a *Algorithm) Name() string {
	return a.info.Name
}

func (a *Algorithm) Info() mining.AlgorithmInfo {
	return a.info
}

func (a *Algorithm) Miner() miners.Miner {
	return a.parent
}

// SetDevices reconciles excavator's worker set with the wanted device set:
// frees workers for removed devices, adds the algorithm on first use, removes
// it when the last device leaves
func (a *Algorithm) SetDevices(ctx context.Context, devices []mining.Device) error {
	wanted := map[mining.DeviceID]mining.Device{}
	for _, d := range devices {
		wanted[d.ID] = d
	}

	for id, workerID := range a.workers {
		if _, keep := wanted[id]; keep {
			continue
		}
		if err := a.parent.api.call("worker.free", []string{strconv.Itoa(workerID)}, nil); err != nil {
			return err
		}
		delete(a.workers, id)
	}

	if len(devices) == 0 {
		if a.added {
			if err := a.parent.api.call("algorithm.remove", []string{a.info.Name}, nil); err != nil {
				return err
			}
			a.added = false
		}
		a.devices = nil
		return nil
	}

	if !a.added {
		params := []string{a.info.Name, a.parent.stratumFor(a.info), a.parent.auth()}
		if err := a.parent.api.call("algorithm.add", params, nil); err != nil {
			return err
		}
		a.added = true
	}

	for id := range wanted {
		if _, ok := a.workers[id]; ok {
			continue
		}
		workerID, err := a.addWorker(id)
		if err != nil {
			return err
		}
		a.workers[id] = workerID
	}

	a.devices = devices
	return nil
}

type workerAddResponse struct {
	WorkerID int `json:"worker_id"`
}

func (a *Algorithm) addWorker(id mining.DeviceID) (int, error) {
	devID, ok := a.parent.excavatorDeviceID(id)
	if !ok {
		return 0, fmt.Errorf("device %s not visible to excavator", id)
	}

	var resp workerAddResponse
	err := a.parent.api.call("worker.add", []string{a.info.Name, strconv.Itoa(devID)}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.WorkerID, nil
}

type algorithmListResponse struct {
	Algorithms []struct {
		Name  string    `json:"name"`
		Speed []float64 `json:"speed"`
	} `json:"algorithms"`
}

// CurrentSpeeds returns live hash speeds, one value per sub-algorithm
func (a *Algorithm) CurrentSpeeds(ctx context.Context) ([]float64, error) {
	var resp algorithmListResponse
	if err := a.parent.api.call("algorithm.list", nil, &resp); err != nil {
		return nil, err
	}

	for _, algo := range resp.Algorithms {
		if algo.Name == a.info.Name {
			speeds := make([]float64, len(a.info.SubAlgorithms))
			copy(speeds, algo.Speed)
			return speeds, nil
		}
	}
	return make([]float64, len(a.info.SubAlgorithms)), nil
}

// restore re-adds the algorithm and its workers on a freshly restarted engine
func (a *Algorithm) restore() error {
	if !a.added {
		return nil
	}

	a.added = false
	a.workers = map[mining.DeviceID]int{}

	devices := a.devices
	a.devices = nil
	return a.SetDevices(context.Background(), devices)
}

// forget drops worker bookkeeping after the engine process is gone
func (a *Algorithm) forget() {
	a.added = false
	a.devices = nil
	a.workers = map[mining.DeviceID]int{}
}
