//go:build linux

package nvidia

import (
	"context"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlProber asks NVML about the driver and falls back to the procfs
// version file when NVML cannot initialize (library missing, driver
// not loaded).
type nvmlProber struct {
	procPath string

	// mu serializes NVML init/shutdown cycles
	mu sync.Mutex
}

func newPlatformProber() Prober {
	return &nvmlProber{procPath: procDriverVersionPath}
}

// Probe implements the Prober interface. NVML is initialized for the
// duration of one probe and shut down again; a failed initialization
// is a normal condition on systems without the NVIDIA stack.
func (p *nvmlProber) Probe(ctx context.Context) (*DriverInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("nvidia probe cancelled: %w", ctx.Err())
	default:
	}

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		// No NVML does not mean no driver, the version file
		// still knows.
		return probeProc(p.procPath)
	}
	defer nvml.Shutdown()

	info := &DriverInfo{Loaded: true, Source: "nvml"}
	if version, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		info.DriverVersion = version
	}
	if version, ret := nvml.SystemGetNVMLVersion(); ret == nvml.SUCCESS {
		info.NVMLVersion = version
	}
	if count, ret := nvml.DeviceGetCount(); ret == nvml.SUCCESS {
		info.DeviceCount = count
	}
	return info, nil
}
