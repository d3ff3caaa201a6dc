//go:build !linux

package nvidia

import "context"

// stubProber reports no driver on platforms without NVML support.
type stubProber struct{}

func newPlatformProber() Prober {
	return stubProber{}
}

func (stubProber) Probe(ctx context.Context) (*DriverInfo, error) {
	return &DriverInfo{Loaded: false}, nil
}
