package mining

// AlgorithmInfo describes one algorithm and the ordered list of sub-algorithms
// it mines simultaneously
type AlgorithmInfo struct {
	Name          string
	SubAlgorithms []string
}

// Revenue projects BTC/day for mining the algorithm on the device, using the
// device's benchmarked speeds. Devices without a benchmark entry yield 0.0
func (t BenchmarkTable) Revenue(device DeviceID, algo AlgorithmInfo, rates PayRates) float64 {
	speeds, ok := t[device][algo.Name]
	if !ok {
		return 0.0
	}

	total := 0.0
	for i, sub := range algo.SubAlgorithms {
		if i >= len(speeds) {
			break
		}
		total += rates[sub] * speeds[i]
	}
	return total
}

// NewRevenueTable computes projected revenue for every (device, algorithm) pair
func NewRevenueTable(devices []Device, algos []AlgorithmInfo, benchmarks BenchmarkTable, rates PayRates) RevenueTable {
	table := make(RevenueTable, len(devices))
	for _, device := range devices {
		byAlgo := make(map[string]float64, len(algos))
		for _, algo := range algos {
			byAlgo[algo.Name] = benchmarks.Revenue(device.ID, algo, rates)
		}
		table[device.ID] = byAlgo
	}
	return table
}

// SpeedRevenue projects BTC/day from live speeds instead of benchmarks, used
// by the status poller
func SpeedRevenue(algo AlgorithmInfo, speeds []float64, rates PayRates) float64 {
	total := 0.0
	for i, sub := range algo.SubAlgorithms {
		if i >= len(speeds) {
			break
		}
		total += rates[sub] * speeds[i]
	}
	return total
}
