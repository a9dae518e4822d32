package switching

import (
	"time"

	"github.com/r1k0/nuxhash/internal/mining"
)

// Naive assigns every device to its most profitable algorithm. A relative
// threshold keeps a device on its current algorithm unless the best candidate
// beats it by more than the threshold fraction, which stops near-tie flapping
type Naive struct {
	threshold float64
	current   mining.Assignment
}

func NewNaive(threshold float64) *Naive {
	return &Naive{
		threshold: threshold,
	}
}

func (n *Naive) Reset() {
	n.current = nil
}

func (n *Naive) Decide(revenues mining.RevenueTable, now time.Time) mining.Assignment {
	next := make(mining.Assignment, len(revenues))

	for device, byAlgo := range revenues {
		best, bestRevenue := "", 0.0
		for name, revenue := range byAlgo {
			if revenue > bestRevenue || (revenue == bestRevenue && best != "" && name < best) {
				best, bestRevenue = name, revenue
			}
		}

		// stick with the current algorithm on a marginal difference; a device
		// with no profitable candidate always goes idle
		if current := n.current[device]; best != "" && current != "" && current != best {
			if bestRevenue <= byAlgo[current]*(1.0+n.threshold) {
				best = current
			}
		}

		next[device] = best
	}

	n.current = next
	return next
}
