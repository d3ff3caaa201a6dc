// Package nvidia probes the NVIDIA kernel driver state. It answers
// whether the proprietary driver is loaded and which version is
// running, preferring NVML and falling back to procfs when the NVML
// library is unavailable.
package nvidia

import (
	"context"
)

// DriverInfo describes the NVIDIA driver state of the host.
type DriverInfo struct {
	// Loaded reports whether the kernel driver is loaded. An
	// unloaded driver is a normal state, not an error.
	Loaded bool `json:"loaded"`

	// DriverVersion is the loaded driver version, e.g. "550.54.14".
	DriverVersion string `json:"driver_version,omitempty"`

	// NVMLVersion is the NVML library version when NVML answered
	// the probe.
	NVMLVersion string `json:"nvml_version,omitempty"`

	// DeviceCount is the number of adapters NVML reported.
	DeviceCount int `json:"device_count,omitempty"`

	// Source records which probe produced the data, "nvml" or
	// "proc".
	Source string `json:"source,omitempty"`
}

// Prober is the interface for driver state probes. Using an interface
// allows for easy mocking in unit tests.
type Prober interface {
	// Probe inspects the running system. It returns Loaded=false
	// rather than an error when no driver is present.
	Probe(ctx context.Context) (*DriverInfo, error)
}

// NewProber returns the prober for the current platform.
func NewProber() Prober {
	return newPlatformProber()
}
