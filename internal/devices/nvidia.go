package devices

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/r1k0/nuxhash/internal/mining"
)

const nvidiaSMI = "nvidia-smi"

// Nvidia enumerates NVIDIA GPUs through nvidia-smi's CSV query output
type Nvidia struct{}

func NewNvidia() *Nvidia {
	return &Nvidia{}
}

func (n *Nvidia) EnumerateDevices(ctx context.Context) ([]mining.Device, error) {
	out, err := exec.CommandContext(ctx, nvidiaSMI,
		"--query-gpu=uuid,name", "--format=csv,noheader").Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nvidiaSMI, err)
	}

	var devices []mining.Device
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: unexpected output line %q", nvidiaSMI, line)
		}
		devices = append(devices, mining.Device{
			ID:     mining.DeviceID(strings.TrimSpace(parts[0])),
			Vendor: "nvidia",
			Name:   strings.TrimSpace(parts[1]),
		})
	}
	return devices, nil
}
