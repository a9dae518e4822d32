package mining

import (
	"encoding/json"
	"os"
)

// BenchmarkTable maps device -> algorithm name -> measured speeds, one entry
// per sub-algorithm in the algorithm's declared order. Read-only for the
// orchestration loop
type BenchmarkTable map[DeviceID]map[string][]float64

// LoadBenchmarks reads a benchmark table from a JSON file. A missing file is
// not an error and yields an empty table, matching a fresh install
func LoadBenchmarks(path string) (BenchmarkTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BenchmarkTable{}, nil
		}
		return nil, err
	}

	var table BenchmarkTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// Copy returns a deep copy, used to snapshot the table at orchestrator start
func (t BenchmarkTable) Copy() BenchmarkTable {
	out := make(BenchmarkTable, len(t))
	for dev, byAlgo := range t {
		algos := make(map[string][]float64, len(byAlgo))
		for name, speeds := range byAlgo {
			s := make([]float64, len(speeds))
			copy(s, speeds)
			algos[name] = s
		}
		out[dev] = algos
	}
	return out
}
