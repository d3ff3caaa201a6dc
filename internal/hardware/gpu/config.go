// Package gpu classifies the GPU topology of a system from its PCI
// device list. It answers what kind of configuration is present
// (simple, hybrid Optimus, hybrid AMD, CrossFire or SLI), which GPU is
// primary, and which device driver detection should run against.
package gpu

import (
	"strings"

	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/provider"
)

// Type is a bitmask describing a GPU configuration. Optimus always
// appears together with Hybrid, CrossFire and SLI always together with
// Composite.
type Type uint32

const (
	// TypeSimple is a single GPU, or anything the hybrid and
	// composite tests could not claim.
	TypeSimple Type = 1 << iota
	// TypeHybrid is an integrated plus discrete GPU pairing.
	TypeHybrid
	// TypeComposite is a multi-GPU array of one discrete vendor.
	TypeComposite
	// TypeOptimus refines TypeHybrid: Intel iGPU with NVIDIA dGPU.
	TypeOptimus
	// TypeCrossFire refines TypeComposite for AMD arrays.
	TypeCrossFire
	// TypeSLI refines TypeComposite for NVIDIA arrays.
	TypeSLI
)

// String returns a pipe-separated list of the set flags.
func (t Type) String() string {
	var parts []string
	if t&TypeSimple != 0 {
		parts = append(parts, "simple")
	}
	if t&TypeHybrid != 0 {
		parts = append(parts, "hybrid")
	}
	if t&TypeComposite != 0 {
		parts = append(parts, "composite")
	}
	if t&TypeOptimus != 0 {
		parts = append(parts, "optimus")
	}
	if t&TypeCrossFire != 0 {
		parts = append(parts, "crossfire")
	}
	if t&TypeSLI != 0 {
		parts = append(parts, "sli")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// DeviceManager enumerates devices and resolves driver providers for
// them. *manager.Manager satisfies it; tests substitute fakes.
type DeviceManager interface {
	// Devices returns the devices carrying every bit in mask, in a
	// stable enumeration order.
	Devices(mask pci.Type) []*pci.Device
	// Providers returns the driver providers for a device, best
	// first. Ordering is the manager's responsibility.
	Providers(dev *pci.Device) []*provider.Provider
}

// Config is a classified GPU topology. It is computed once, eagerly,
// from a snapshot of the manager's device list and never recomputed;
// construct a new Config to re-classify. The device references it
// holds are owned by the manager.
type Config struct {
	mgr DeviceManager
	log *zap.Logger

	count     int
	gpuType   Type
	primary   *pci.Device
	secondary *pci.Device
}

// Option configures a Config before classification runs.
type Option func(*Config)

// WithLogger sets the logger used for classification diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) { c.log = log }
}

// NewConfig classifies the system GPU topology using the manager's
// device list. The manager is required; passing nil is a programmer
// error and panics.
func NewConfig(mgr DeviceManager, opts ...Option) *Config {
	if mgr == nil {
		panic("gpu: NewConfig requires a device manager")
	}

	c := &Config{
		mgr:     mgr,
		log:     zap.NewNop(),
		gpuType: TypeSimple,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.classify()
	return c
}

// searchBoot returns the first device whose boot_vga attribute equals
// wantBoot, skipping the given device. List order decides ties.
func searchBoot(devices []*pci.Device, wantBoot bool, skip *pci.Device) *pci.Device {
	for _, dev := range devices {
		if dev == skip {
			continue
		}
		if dev.BootVGA() == wantBoot {
			return dev
		}
	}
	return nil
}

// isOptimus tests for the Intel iGPU plus NVIDIA dGPU arrangement: the
// boot display must be the Intel device and the NVIDIA device must not
// be the boot display.
func isOptimus(primary, secondary *pci.Device) bool {
	if !primary.BootVGA() || secondary.BootVGA() {
		return false
	}
	return primary.VendorID() == pci.VendorIntel &&
		secondary.VendorID() == pci.VendorNVIDIA
}

// isAMDHybrid tests for an AMD dGPU paired with an Intel or AMD boot
// GPU, the AMD analogue of Optimus.
func isAMDHybrid(primary, secondary *pci.Device) bool {
	if !primary.BootVGA() || secondary.BootVGA() {
		return false
	}
	if primary.VendorID() != pci.VendorIntel && primary.VendorID() != pci.VendorAMD {
		return false
	}
	return secondary.VendorID() == pci.VendorAMD
}

// classify snapshots the manager's GPU list and derives the topology.
//
// With two or more GPUs the boot display (or the first device when
// nothing is flagged bootable) becomes the primary, and the first
// remaining non-boot device the secondary candidate. Only this pair is
// examined; further GPUs are counted but never inspected.
func (c *Config) classify() {
	devices := c.mgr.Devices(pci.TypePCI | pci.TypeGPU)
	c.count = len(devices)

	if c.count < 1 {
		c.log.Info("failed to discover any GPUs")
		return
	}

	c.primary = devices[0]

	if c.count == 1 {
		c.logResult()
		return
	}

	primary := searchBoot(devices, true, nil)
	if primary == nil {
		primary = devices[0]
	}
	c.primary = primary

	secondary := searchBoot(devices, false, primary)
	if secondary == nil {
		// Every other device claims boot_vga too. Nothing sane
		// to pair up, stay simple.
		c.logResult()
		return
	}

	switch {
	case isOptimus(primary, secondary):
		c.gpuType = TypeHybrid | TypeOptimus
		c.secondary = secondary
	case isAMDHybrid(primary, secondary):
		c.gpuType = TypeHybrid
		c.secondary = secondary
	case primary.VendorID() == secondary.VendorID():
		switch primary.VendorID() {
		case pci.VendorAMD:
			c.gpuType = TypeComposite | TypeCrossFire
			c.secondary = secondary
		case pci.VendorNVIDIA:
			c.gpuType = TypeComposite | TypeSLI
			c.secondary = secondary
		}
	}
	c.logResult()
}

func (c *Config) logResult() {
	fields := []zap.Field{
		zap.Int("gpus", c.count),
		zap.Stringer("type", c.gpuType),
		zap.Stringer("primary", c.primary),
	}
	if c.secondary != nil {
		fields = append(fields, zap.Stringer("secondary", c.secondary))
	}
	c.log.Debug("gpu topology classified", fields...)
}

// Count returns the number of GPUs found on the system.
func (c *Config) Count() int { return c.count }

// Type returns the configuration type flags.
func (c *Config) Type() Type { return c.gpuType }

// HasType reports whether every flag bit in mask is present in the
// configuration type.
func (c *Config) HasType(mask Type) bool {
	return c.gpuType&mask == mask
}

// IsSimple reports a plain single-GPU style configuration.
func (c *Config) IsSimple() bool { return c.HasType(TypeSimple) }

// IsHybrid reports an integrated plus discrete GPU pairing.
func (c *Config) IsHybrid() bool { return c.HasType(TypeHybrid) }

// IsComposite reports a same-vendor multi-GPU array.
func (c *Config) IsComposite() bool { return c.HasType(TypeComposite) }

// IsOptimus reports the Intel plus NVIDIA hybrid arrangement.
func (c *Config) IsOptimus() bool { return c.HasType(TypeOptimus) }

// IsCrossFire reports an AMD composite array.
func (c *Config) IsCrossFire() bool { return c.HasType(TypeCrossFire) }

// IsSLI reports an NVIDIA composite array.
func (c *Config) IsSLI() bool { return c.HasType(TypeSLI) }

// PrimaryDevice returns the primary active GPU, the baseline for
// driver detection in all non-hybrid cases. It is nil only when no
// GPUs were found.
func (c *Config) PrimaryDevice() *pci.Device { return c.primary }

// SecondaryDevice returns the discrete GPU of a hybrid or composite
// configuration, nil otherwise.
func (c *Config) SecondaryDevice() *pci.Device { return c.secondary }

// DetectionDevice returns the device driver detection must run
// against: the secondary (discrete) GPU for hybrid configurations, the
// primary GPU otherwise.
func (c *Config) DetectionDevice() *pci.Device {
	if c.HasType(TypeHybrid) {
		return c.secondary
	}
	return c.primary
}

// Providers returns the driver providers suited to this configuration
// by resolving the detection device through the manager. The manager
// is responsible for the ordering of the returned list.
func (c *Config) Providers() []*provider.Provider {
	return c.mgr.Providers(c.DetectionDevice())
}

// Manager returns the device manager the configuration was built from.
func (c *Config) Manager() DeviceManager { return c.mgr }
