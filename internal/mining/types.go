package mining

import "time"

// DeviceID uniquely identifies a compute device for the lifetime of the process
type DeviceID string

// Device is an immutable descriptor of a compute device, enumerated once at start
type Device struct {
	ID     DeviceID `json:"id"`
	Vendor string   `json:"vendor"`
	Name   string   `json:"name"`
}

// PayRates maps a sub-algorithm name to its pay rate (BTC per unit of work per day)
type PayRates map[string]float64

// Stratums maps an algorithm name to its pool connection endpoint, passed
// opaquely to the mining engines
type Stratums map[string]string

// Assignment maps every known device to the name of the algorithm it should
// mine, or to an empty string when the device is left idle. The profit switch
// job is the only writer
type Assignment map[DeviceID]string

// RevenueTable maps (device, algorithm name) to projected BTC/day
type RevenueTable map[DeviceID]map[string]float64

// AlgorithmStatus is a per-algorithm slice of a status snapshot
type AlgorithmStatus struct {
	Algorithm     string    `json:"algorithm"`
	SubAlgorithms []string  `json:"subAlgorithms"`
	Devices       []Device  `json:"devices"`
	Speeds        []float64 `json:"speeds"`
	Revenue       float64   `json:"revenue"`
}

// StatusSnapshot is an immutable view of all actively mining algorithms,
// emitted on every status poll cycle
type StatusSnapshot struct {
	Time         time.Time         `json:"time"`
	Algorithms   []AlgorithmStatus `json:"algorithms"`
	TotalRevenue float64           `json:"totalRevenue"`
}

// Copy returns a deep copy of the payrates table
func (p PayRates) Copy() PayRates {
	out := make(PayRates, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Devices returns the devices assigned to the given algorithm, preserving the
// order of the devices slice
func (a Assignment) Devices(algorithm string, devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if a[d.ID] == algorithm {
			out = append(out, d)
		}
	}
	return out
}

// Active returns the names of algorithms holding at least one device
func (a Assignment) Active() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, name := range a {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
