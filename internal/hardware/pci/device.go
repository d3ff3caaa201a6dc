// Package pci models PCI devices as immutable value types and enumerates
// them from the sysfs PCI bus.
package pci

import (
	"fmt"
	"strings"
)

// Vendor is a PCI vendor identifier.
type Vendor uint16

// Vendors relevant to GPU topology decisions.
const (
	VendorAMD    Vendor = 0x1002
	VendorNVIDIA Vendor = 0x10de
	VendorIntel  Vendor = 0x8086
)

// String returns a human-readable vendor name for the well-known GPU
// vendors and the raw hex identifier for everything else.
func (v Vendor) String() string {
	switch v {
	case VendorAMD:
		return "AMD"
	case VendorNVIDIA:
		return "NVIDIA"
	case VendorIntel:
		return "Intel"
	default:
		return fmt.Sprintf("0x%04x", uint16(v))
	}
}

// Type is a bitmask describing what kind of device this is. A single
// device can carry several bits, e.g. TypePCI|TypeGPU.
type Type uint16

const (
	// TypePCI is set on every device enumerated from the PCI bus.
	TypePCI Type = 1 << iota
	// TypeGPU is set on display controllers (VGA, 3D and other
	// display class devices).
	TypeGPU
	// TypeAudio is set on audio functions, e.g. the HDMI audio
	// function of a discrete GPU.
	TypeAudio
	// TypeBridge is set on PCI bridges.
	TypeBridge

	// TypeAny matches every device.
	TypeAny Type = 0
)

// String returns a pipe-separated list of the set type bits.
func (t Type) String() string {
	if t == TypeAny {
		return "any"
	}
	var parts []string
	if t&TypePCI != 0 {
		parts = append(parts, "pci")
	}
	if t&TypeGPU != 0 {
		parts = append(parts, "gpu")
	}
	if t&TypeAudio != 0 {
		parts = append(parts, "audio")
	}
	if t&TypeBridge != 0 {
		parts = append(parts, "bridge")
	}
	return strings.Join(parts, "|")
}

// Attribute is a bitmask of auxiliary device attributes.
type Attribute uint16

const (
	// AttrBootVGA marks the GPU the firmware used for boot output,
	// i.e. the device whose sysfs boot_vga attribute reads 1.
	AttrBootVGA Attribute = 1 << iota

	// AttrNone means no attributes are set.
	AttrNone Attribute = 0
)

// PCI class codes used for type detection. sysfs exposes the full
// 24-bit class; base classes cover the top 8 bits, classAudioDev the
// top 16. Display controllers of any subclass (VGA 0x0300, 3D 0x0302,
// other 0x0380) count as GPUs.
const (
	baseDisplay   = 0x03
	baseBridge    = 0x06
	classAudioDev = 0x0403
)

// Device is a single PCI device. Instances are immutable once
// constructed; consumers hold non-owning references handed out by the
// enumerating manager.
type Device struct {
	path        string
	address     string
	vendor      Vendor
	product     uint16
	class       uint32
	devType     Type
	attrs       Attribute
	driver      string
	modalias    string
	vendorName  string
	productName string
}

// DeviceOption configures optional Device fields at construction time.
type DeviceOption func(*Device)

// WithPath records the sysfs directory the device was read from.
func WithPath(path string) DeviceOption {
	return func(d *Device) { d.path = path }
}

// WithBootVGA marks the device as the firmware boot display.
func WithBootVGA() DeviceOption {
	return func(d *Device) { d.attrs |= AttrBootVGA }
}

// WithDriver records the kernel driver currently bound to the device.
func WithDriver(driver string) DeviceOption {
	return func(d *Device) { d.driver = driver }
}

// WithModalias records the kernel modalias string for the device.
func WithModalias(modalias string) DeviceOption {
	return func(d *Device) { d.modalias = modalias }
}

// WithVendorName records the human-readable vendor name.
func WithVendorName(name string) DeviceOption {
	return func(d *Device) { d.vendorName = name }
}

// WithProductName records the human-readable product name.
func WithProductName(name string) DeviceOption {
	return func(d *Device) { d.productName = name }
}

// NewDevice constructs a Device from its PCI identity. The device type
// bits are derived from the 24-bit class code; every device gets
// TypePCI.
func NewDevice(address string, vendor Vendor, product uint16, class uint32, opts ...DeviceOption) *Device {
	d := &Device{
		address: address,
		vendor:  vendor,
		product: product,
		class:   class,
		devType: TypePCI | typeForClass(class),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// typeForClass maps a 24-bit PCI class code to extra type bits.
func typeForClass(class uint32) Type {
	code := class >> 8
	switch {
	case code>>8 == baseDisplay:
		return TypeGPU
	case code == classAudioDev:
		return TypeAudio
	case code>>8 == baseBridge:
		return TypeBridge
	}
	return TypeAny
}

// Path returns the sysfs directory the device was enumerated from.
func (d *Device) Path() string { return d.path }

// Address returns the PCI address, e.g. "0000:01:00.0".
func (d *Device) Address() string { return d.address }

// VendorID returns the PCI vendor identifier.
func (d *Device) VendorID() Vendor { return d.vendor }

// ProductID returns the PCI device identifier.
func (d *Device) ProductID() uint16 { return d.product }

// Class returns the raw 24-bit PCI class code.
func (d *Device) Class() uint32 { return d.class }

// Type returns the device type bitmask.
func (d *Device) Type() Type { return d.devType }

// HasType reports whether every bit in mask is set on the device.
func (d *Device) HasType(mask Type) bool {
	return d.devType&mask == mask
}

// HasAttribute reports whether every bit in mask is set on the device.
func (d *Device) HasAttribute(mask Attribute) bool {
	return d.attrs&mask == mask
}

// BootVGA reports whether the firmware used this device for boot output.
func (d *Device) BootVGA() bool {
	return d.HasAttribute(AttrBootVGA)
}

// Driver returns the bound kernel driver name, or "" when unbound.
func (d *Device) Driver() string { return d.driver }

// Modalias returns the kernel modalias string, or "" when unknown.
func (d *Device) Modalias() string { return d.modalias }

// VendorName returns the vendor name resolved from a PCI ID database,
// falling back to the well-known GPU vendor names.
func (d *Device) VendorName() string {
	if d.vendorName != "" {
		return d.vendorName
	}
	return d.vendor.String()
}

// ProductName returns the product name resolved from a PCI ID database,
// or "" when unknown.
func (d *Device) ProductName() string { return d.productName }

// Name returns the best available human-readable device name.
func (d *Device) Name() string {
	if d.productName != "" {
		return d.productName
	}
	return fmt.Sprintf("%s device 0x%04x", d.VendorName(), d.product)
}

// String renders the device for log output.
func (d *Device) String() string {
	return fmt.Sprintf("%s [%04x:%04x]", d.address, uint16(d.vendor), d.product)
}
