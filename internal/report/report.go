// Package report assembles driver status reports from the hardware
// inspection components. A report is the JSON document the status
// command prints and the HTTP API serves.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/hardware/gpu"
	"github.com/openldm/ldm/internal/hardware/host"
	"github.com/openldm/ldm/internal/hardware/nvidia"
	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/provider"
)

// Device summarizes one GPU-class PCI device.
type Device struct {
	Address   string `json:"address"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	Vendor    string `json:"vendor"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	BootVGA   bool   `json:"boot_vga"`
	Driver    string `json:"driver,omitempty"`
	Modalias  string `json:"modalias,omitempty"`
}

// Topology summarizes the classified GPU configuration.
type Topology struct {
	Count     int     `json:"gpu_count"`
	Type      string  `json:"type"`
	Primary   *Device `json:"primary,omitempty"`
	Secondary *Device `json:"secondary,omitempty"`
	Detection *Device `json:"detection,omitempty"`
}

// Status is a complete driver status report.
type Status struct {
	ReportID    string               `json:"report_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Version     string               `json:"version"`
	Host        *host.Info           `json:"host,omitempty"`
	Devices     []Device             `json:"devices"`
	Topology    *Topology            `json:"topology"`
	Providers   []*provider.Provider `json:"providers"`
	NVIDIA      *nvidia.DriverInfo   `json:"nvidia_driver,omitempty"`

	// Errors lists non-fatal problems hit while gathering the
	// report. A report is produced even when parts failed.
	Errors []string `json:"errors,omitempty"`
}

// Builder assembles Status reports from the inspection components.
type Builder struct {
	mgr     gpu.DeviceManager
	hosts   host.Collector
	prober  nvidia.Prober
	log     *zap.Logger
	version string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithHostCollector includes host identity in reports.
func WithHostCollector(c host.Collector) BuilderOption {
	return func(b *Builder) { b.hosts = c }
}

// WithProber includes NVIDIA driver state in reports when the
// detection device is an NVIDIA GPU.
func WithProber(p nvidia.Prober) BuilderOption {
	return func(b *Builder) { b.prober = p }
}

// WithLogger sets the assembly logger.
func WithLogger(log *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = log }
}

// WithVersion stamps reports with the tool version.
func WithVersion(version string) BuilderOption {
	return func(b *Builder) { b.version = version }
}

// NewBuilder creates a Builder over the given device manager. Host
// collection and driver probing are opt-in through options.
func NewBuilder(mgr gpu.DeviceManager, opts ...BuilderOption) *Builder {
	b := &Builder{mgr: mgr, log: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a report. Topology classification runs inline, host
// and driver collection run concurrently. Failures of individual
// collectors land in Errors; Build always returns a report.
func (b *Builder) Build(ctx context.Context) *Status {
	status := &Status{
		ReportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Version:     b.version,
		Devices:     make([]Device, 0),
		Providers:   make([]*provider.Provider, 0),
		Errors:      make([]string, 0),
	}

	cfg := gpu.NewConfig(b.mgr, gpu.WithLogger(b.log))

	// Use WaitGroup to coordinate concurrent collection
	var wg sync.WaitGroup
	var mu sync.Mutex // Protects status fields written by goroutines

	addError := func(msg string) {
		mu.Lock()
		status.Errors = append(status.Errors, msg)
		mu.Unlock()
	}

	if b.hosts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b.log.Debug("collecting host identity")
			info, err := b.hosts.Collect(ctx)
			if err != nil {
				b.log.Error("host collection failed", zap.Error(err))
				addError(fmt.Sprintf("host: %v", err))
				return
			}
			mu.Lock()
			status.Host = info
			mu.Unlock()
		}()
	}

	// The driver probe only matters when driver detection would
	// target an NVIDIA device.
	detection := cfg.DetectionDevice()
	if b.prober != nil && detection != nil && detection.VendorID() == pci.VendorNVIDIA {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b.log.Debug("probing nvidia driver state")
			info, err := b.prober.Probe(ctx)
			if err != nil {
				b.log.Error("nvidia probe failed", zap.Error(err))
				addError(fmt.Sprintf("nvidia: %v", err))
				return
			}
			mu.Lock()
			status.NVIDIA = info
			mu.Unlock()
		}()
	}

	for _, dev := range b.mgr.Devices(pci.TypePCI | pci.TypeGPU) {
		status.Devices = append(status.Devices, Summarize(dev))
	}
	status.Topology = topologyOf(cfg)
	if providers := cfg.Providers(); providers != nil {
		status.Providers = providers
	}

	wg.Wait()
	return status
}

func topologyOf(cfg *gpu.Config) *Topology {
	return &Topology{
		Count:     cfg.Count(),
		Type:      cfg.Type().String(),
		Primary:   summarizeRef(cfg.PrimaryDevice()),
		Secondary: summarizeRef(cfg.SecondaryDevice()),
		Detection: summarizeRef(cfg.DetectionDevice()),
	}
}

// Summarize converts a PCI device into its report form.
func Summarize(dev *pci.Device) Device {
	return Device{
		Address:   dev.Address(),
		VendorID:  fmt.Sprintf("0x%04x", uint16(dev.VendorID())),
		ProductID: fmt.Sprintf("0x%04x", dev.ProductID()),
		Vendor:    dev.VendorName(),
		Name:      dev.Name(),
		Class:     fmt.Sprintf("0x%06x", dev.Class()),
		BootVGA:   dev.BootVGA(),
		Driver:    dev.Driver(),
		Modalias:  dev.Modalias(),
	}
}

func summarizeRef(dev *pci.Device) *Device {
	if dev == nil {
		return nil
	}
	s := Summarize(dev)
	return &s
}
