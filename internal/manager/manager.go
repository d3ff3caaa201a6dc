// Package manager enumerates PCI devices and resolves driver provider
// candidates for them through modalias plugins.
package manager

import (
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/pciids"
	"github.com/openldm/ldm/internal/provider"
)

// DefaultModaliasDirs lists where provider plugin files are installed,
// vendor files first, admin overrides second.
var DefaultModaliasDirs = []string{
	"/usr/share/ldm/modaliases",
	"/etc/ldm/modaliases",
}

// Manager holds the enumerated device list and the loaded provider
// plugins. It is immutable after New and safe for concurrent readers.
type Manager struct {
	devices []*pci.Device
	plugins []*provider.Plugin
	log     *zap.Logger
}

type options struct {
	sysfsRoot    string
	modaliasDirs []string
	db           *pciids.DB
	log          *zap.Logger
}

// Option configures Manager construction.
type Option func(*options)

// WithSysfsRoot overrides the sysfs mount the PCI scan reads from.
func WithSysfsRoot(root string) Option {
	return func(o *options) { o.sysfsRoot = root }
}

// WithModaliasDirs overrides the provider plugin directories.
func WithModaliasDirs(dirs ...string) Option {
	return func(o *options) { o.modaliasDirs = dirs }
}

// WithPCIIDs resolves device names through the given database.
func WithPCIIDs(db *pciids.DB) Option {
	return func(o *options) { o.db = db }
}

// WithLogger sets the construction and lookup logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// New scans the PCI bus and loads provider plugins. Scan and plugin
// failures degrade to warnings and an emptier Manager; New always
// returns a usable Manager.
func New(opts ...Option) *Manager {
	o := options{
		sysfsRoot:    pci.DefaultSysfsRoot,
		modaliasDirs: DefaultModaliasDirs,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{log: o.log}

	scanner := pci.NewScanner(o.sysfsRoot, pci.WithNameDB(o.db), pci.WithLogger(o.log))
	devices, err := scanner.Scan()
	if err != nil {
		o.log.Warn("pci scan failed", zap.Error(err))
	}
	m.devices = devices

	for _, dir := range o.modaliasDirs {
		plugins, err := provider.LoadDir(dir)
		if err != nil {
			o.log.Warn("loading provider plugins failed",
				zap.String("dir", dir),
				zap.Error(err))
		}
		m.plugins = append(m.plugins, plugins...)
	}

	m.log.Debug("device manager ready",
		zap.Int("devices", len(m.devices)),
		zap.Int("plugins", len(m.plugins)))
	return m
}

// Devices returns the devices carrying every bit in mask, in PCI bus
// order. The returned slice is the caller's to keep, the devices are
// shared references.
func (m *Manager) Devices(mask pci.Type) []*pci.Device {
	var out []*pci.Device
	for _, dev := range m.devices {
		if dev.HasType(mask) {
			out = append(out, dev)
		}
	}
	return out
}

// Providers returns the driver providers whose plugins match the
// device, ordered best first: priority descending, then package name.
// A nil device resolves to no providers.
func (m *Manager) Providers(dev *pci.Device) []*provider.Provider {
	if dev == nil {
		return nil
	}

	var out []*provider.Provider
	for _, plugin := range m.plugins {
		if prov := plugin.Match(dev.Modalias()); prov != nil {
			out = append(out, prov)
		}
	}
	provider.Sort(out)
	return out
}

// PluginCount returns the number of loaded provider plugins.
func (m *Manager) PluginCount() int { return len(m.plugins) }
