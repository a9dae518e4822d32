package switching

import (
	"time"

	"github.com/r1k0/nuxhash/internal/mining"
)

// Policy turns a revenue table into a device-to-algorithm assignment. Decide
// must return a total assignment: every device present in the table appears in
// the result, possibly unassigned. Implementations may keep hysteresis state
// across calls; Reset discards it
type Policy interface {
	Reset()
	Decide(revenues mining.RevenueTable, now time.Time) mining.Assignment
}
