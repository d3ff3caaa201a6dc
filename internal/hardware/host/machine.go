// Package host collects identity details about the machine being
// inspected, for inclusion in driver status reports.
package host

import (
	"context"
	"fmt"
	"runtime"

	hostinfo "github.com/shirou/gopsutil/v3/host"
)

// Info identifies the host a driver report was generated on. The
// kernel fields matter most: driver packages are matched against the
// running kernel.
type Info struct {
	// MachineID is a unique identifier for this machine, on Linux
	// sourced from /etc/machine-id.
	MachineID string `json:"machine_id"`

	// Hostname is the system hostname.
	Hostname string `json:"hostname"`

	// OS is the operating system, e.g. "linux".
	OS string `json:"os"`

	// Platform names the distribution, e.g. "solus", "ubuntu".
	Platform string `json:"platform"`

	// PlatformVersion is the distribution release.
	PlatformVersion string `json:"platform_version"`

	// KernelVersion is the running kernel release string.
	KernelVersion string `json:"kernel_version"`

	// KernelArch is the kernel architecture, e.g. "x86_64".
	KernelArch string `json:"kernel_arch"`

	// Uptime is the system uptime in seconds.
	Uptime uint64 `json:"uptime_seconds"`
}

// Collector is the interface for host identity collection. Using an
// interface allows for easy mocking in unit tests.
type Collector interface {
	// Collect gathers host identity details. It respects the
	// provided context for cancellation/timeout.
	Collect(ctx context.Context) (*Info, error)
}

// GopsutilCollector implements Collector using the gopsutil library.
type GopsutilCollector struct{}

// NewGopsutilCollector creates a new gopsutil-based host collector.
func NewGopsutilCollector() *GopsutilCollector {
	return &GopsutilCollector{}
}

// Collect implements the Collector interface.
func (c *GopsutilCollector) Collect(ctx context.Context) (*Info, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("host collection cancelled: %w", ctx.Err())
	default:
	}

	hostStat, err := hostinfo.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host info: %w", err)
	}

	return &Info{
		MachineID:       hostStat.HostID,
		Hostname:        hostStat.Hostname,
		OS:              runtime.GOOS,
		Platform:        hostStat.Platform,
		PlatformVersion: hostStat.PlatformVersion,
		KernelVersion:   hostStat.KernelVersion,
		KernelArch:      hostStat.KernelArch,
		Uptime:          hostStat.Uptime,
	}, nil
}
