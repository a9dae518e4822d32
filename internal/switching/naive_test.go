package switching

import (
	"testing"
	"time"

	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/stretchr/testify/require"
)

func TestNaivePicksMostProfitable(t *testing.T) {
	policy := NewNaive(0.02)
	policy.Reset()

	revenues := mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 20.0},
		"device2": {"X": 30.0, "Y": 5.0},
	}

	assignment := policy.Decide(revenues, time.Now())

	require.Equal(t, mining.Assignment{"device1": "Y", "device2": "X"}, assignment)
}

func TestNaiveLeavesUnprofitableDevicesIdle(t *testing.T) {
	policy := NewNaive(0.02)
	policy.Reset()

	revenues := mining.RevenueTable{
		"device1": {"X": 0.0, "Y": 0.0},
	}

	assignment := policy.Decide(revenues, time.Now())

	require.Equal(t, mining.Assignment{"device1": ""}, assignment)
}

func TestNaiveIdlesAssignedDeviceWhenRevenueCollapses(t *testing.T) {
	policy := NewNaive(0.10)
	policy.Reset()

	first := policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 1.0},
	}, time.Now())
	require.Equal(t, "X", first["device1"])

	// nothing pays anymore; stickiness must not keep the device mining
	second := policy.Decide(mining.RevenueTable{
		"device1": {"X": 0.0, "Y": 0.0},
	}, time.Now())
	require.Equal(t, "", second["device1"])
}

func TestNaiveHysteresisHoldsOnMarginalGain(t *testing.T) {
	policy := NewNaive(0.10)
	policy.Reset()

	first := policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 1.0},
	}, time.Now())
	require.Equal(t, "X", first["device1"])

	// Y pulls ahead, but within the 10% threshold
	second := policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 10.5},
	}, time.Now())
	require.Equal(t, "X", second["device1"])

	// Y clearly ahead, threshold exceeded
	third := policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 12.0},
	}, time.Now())
	require.Equal(t, "Y", third["device1"])
}

func TestNaiveResetDropsHysteresisState(t *testing.T) {
	policy := NewNaive(0.50)

	policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 1.0},
	}, time.Now())

	policy.Reset()

	// without the previous assignment there is nothing to hold on to
	assignment := policy.Decide(mining.RevenueTable{
		"device1": {"X": 10.0, "Y": 11.0},
	}, time.Now())
	require.Equal(t, "Y", assignment["device1"])
}

func TestNaiveAssignmentIsTotal(t *testing.T) {
	policy := NewNaive(0.02)
	policy.Reset()

	revenues := mining.RevenueTable{
		"device1": {"X": 1.0},
		"device2": {},
		"device3": {"X": 0.0},
	}

	assignment := policy.Decide(revenues, time.Now())

	require.Len(t, assignment, 3)
	for device := range revenues {
		_, ok := assignment[device]
		require.True(t, ok, "device %s missing from assignment", device)
	}
}
