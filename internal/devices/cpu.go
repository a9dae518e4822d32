package devices

import (
	"context"
	"fmt"

	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPU exposes the host processor as a single mining device, for the
// CPU-minable algorithms
type CPU struct{}

func NewCPU() *CPU {
	return &CPU{}
}

func (c *CPU) EnumerateDevices(ctx context.Context) ([]mining.Device, error) {
	info, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("no cpu info available")
	}

	return []mining.Device{{
		ID:     mining.DeviceID(fmt.Sprintf("cpu-%d", info[0].CPU)),
		Vendor: info[0].VendorID,
		Name:   info[0].ModelName,
	}}, nil
}
