package pci

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/pciids"
)

// DefaultSysfsRoot is where a running kernel mounts sysfs.
const DefaultSysfsRoot = "/sys"

// Scanner enumerates PCI devices from a sysfs tree. The root is
// configurable so tests can point it at a fabricated tree.
type Scanner struct {
	root string
	db   *pciids.DB
	log  *zap.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithNameDB resolves vendor and product names through the given PCI ID
// database while scanning.
func WithNameDB(db *pciids.DB) ScannerOption {
	return func(s *Scanner) { s.db = db }
}

// WithLogger sets the logger used for per-device scan diagnostics.
func WithLogger(log *zap.Logger) ScannerOption {
	return func(s *Scanner) { s.log = log }
}

// NewScanner creates a Scanner rooted at the given sysfs mount. An
// empty root selects DefaultSysfsRoot.
func NewScanner(root string, opts ...ScannerOption) *Scanner {
	if root == "" {
		root = DefaultSysfsRoot
	}
	s := &Scanner{root: root, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads every device under <root>/bus/pci/devices. Devices come
// back in PCI address order, which is how the directory sorts. Devices
// with unreadable identity attributes are skipped with a warning.
func (s *Scanner) Scan() ([]*Device, error) {
	devicesDir := filepath.Join(s.root, "bus", "pci", "devices")
	entries, err := os.ReadDir(devicesDir)
	if err != nil {
		return nil, fmt.Errorf("read pci devices: %w", err)
	}

	var devices []*Device
	for _, entry := range entries {
		address := entry.Name()
		dev, err := s.readDevice(filepath.Join(devicesDir, address), address)
		if err != nil {
			s.log.Warn("skipping unreadable pci device",
				zap.String("address", address),
				zap.Error(err))
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// readDevice loads one device directory. The vendor, device and class
// attributes are mandatory, everything else is best effort.
func (s *Scanner) readDevice(devDir, address string) (*Device, error) {
	vendor, err := readHexAttr(devDir, "vendor")
	if err != nil {
		return nil, fmt.Errorf("read vendor: %w", err)
	}
	product, err := readHexAttr(devDir, "device")
	if err != nil {
		return nil, fmt.Errorf("read device: %w", err)
	}
	class, err := readHexAttr(devDir, "class")
	if err != nil {
		return nil, fmt.Errorf("read class: %w", err)
	}

	opts := []DeviceOption{WithPath(devDir)}
	if v, err := readSysfsAttr(devDir, "boot_vga"); err == nil && v == "1" {
		opts = append(opts, WithBootVGA())
	}
	if v, err := readSysfsAttr(devDir, "modalias"); err == nil && v != "" {
		opts = append(opts, WithModalias(v))
	}
	// The driver entry is a symlink into /sys/bus/pci/drivers.
	if link, err := os.Readlink(filepath.Join(devDir, "driver")); err == nil {
		opts = append(opts, WithDriver(filepath.Base(link)))
	}
	if s.db != nil {
		if name := s.db.VendorName(uint16(vendor)); name != "" {
			opts = append(opts, WithVendorName(name))
		}
		if name := s.db.ProductName(uint16(vendor), uint16(product)); name != "" {
			opts = append(opts, WithProductName(name))
		}
	}

	return NewDevice(address, Vendor(vendor), uint16(product), uint32(class), opts...), nil
}

// readSysfsAttr reads and trims a single sysfs attribute file.
func readSysfsAttr(dir, attr string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readHexAttr reads a sysfs attribute holding a hex value like 0x8086.
func readHexAttr(dir, attr string) (uint64, error) {
	raw, err := readSysfsAttr(dir, attr)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", attr, raw, err)
	}
	return val, nil
}
