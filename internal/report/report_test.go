package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openldm/ldm/internal/hardware/host"
	"github.com/openldm/ldm/internal/hardware/nvidia"
	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/provider"
)

// fakeManager hands out a fixed device list in insertion order.
type fakeManager struct {
	devices   []*pci.Device
	providers map[*pci.Device][]*provider.Provider
}

func (f *fakeManager) Devices(mask pci.Type) []*pci.Device {
	var out []*pci.Device
	for _, dev := range f.devices {
		if dev.HasType(mask) {
			out = append(out, dev)
		}
	}
	return out
}

func (f *fakeManager) Providers(dev *pci.Device) []*provider.Provider {
	if dev == nil {
		return nil
	}
	return f.providers[dev]
}

type fakeCollector struct {
	info *host.Info
	err  error
}

func (f *fakeCollector) Collect(ctx context.Context) (*host.Info, error) {
	return f.info, f.err
}

type fakeProber struct {
	info  *nvidia.DriverInfo
	err   error
	calls int
}

func (f *fakeProber) Probe(ctx context.Context) (*nvidia.DriverInfo, error) {
	f.calls++
	return f.info, f.err
}

func TestBuildOptimusReport(t *testing.T) {
	igpu := pci.NewDevice("0000:00:02.0", pci.VendorIntel, 0x9bc4, 0x030000,
		pci.WithBootVGA(), pci.WithDriver("i915"))
	dgpu := pci.NewDevice("0000:01:00.0", pci.VendorNVIDIA, 0x1f95, 0x030200,
		pci.WithDriver("nouveau"), pci.WithModalias("pci:v000010DEd00001F95sv00001028sd0000097Dbc03sc02i00"))
	audio := pci.NewDevice("0000:01:00.1", pci.VendorNVIDIA, 0x10fa, 0x040300)

	ranked := []*provider.Provider{
		{Package: "nvidia-glx-driver-current", Module: "nvidia", Priority: 100},
		{Package: "nvidia-glx-driver-470", Module: "nvidia", Priority: 70},
	}
	mgr := &fakeManager{
		devices:   []*pci.Device{igpu, dgpu, audio},
		providers: map[*pci.Device][]*provider.Provider{dgpu: ranked},
	}
	prober := &fakeProber{info: &nvidia.DriverInfo{
		Loaded:        true,
		DriverVersion: "550.54.14",
		Source:        "nvml",
	}}

	b := NewBuilder(mgr,
		WithHostCollector(&fakeCollector{info: &host.Info{Hostname: "optimus-laptop"}}),
		WithProber(prober),
		WithVersion("1.2.3"),
	)
	status := b.Build(context.Background())
	require.NotNil(t, status)

	_, err := uuid.Parse(status.ReportID)
	assert.NoError(t, err, "report id must be a uuid")
	assert.WithinDuration(t, time.Now().UTC(), status.GeneratedAt, time.Minute)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Empty(t, status.Errors)

	require.NotNil(t, status.Host)
	assert.Equal(t, "optimus-laptop", status.Host.Hostname)

	// Only the GPU functions make the device list, not the HDMI audio
	// function.
	require.Len(t, status.Devices, 2)
	assert.Equal(t, "0000:00:02.0", status.Devices[0].Address)
	assert.Equal(t, "0x8086", status.Devices[0].VendorID)
	assert.Equal(t, "Intel", status.Devices[0].Vendor)
	assert.True(t, status.Devices[0].BootVGA)
	assert.Equal(t, "i915", status.Devices[0].Driver)
	assert.Equal(t, "nouveau", status.Devices[1].Driver)
	assert.NotEmpty(t, status.Devices[1].Modalias)

	require.NotNil(t, status.Topology)
	assert.Equal(t, 2, status.Topology.Count)
	assert.Equal(t, "hybrid|optimus", status.Topology.Type)
	require.NotNil(t, status.Topology.Primary)
	assert.Equal(t, "0000:00:02.0", status.Topology.Primary.Address)
	require.NotNil(t, status.Topology.Detection)
	assert.Equal(t, "0000:01:00.0", status.Topology.Detection.Address)

	assert.Equal(t, ranked, status.Providers)

	assert.Equal(t, 1, prober.calls)
	require.NotNil(t, status.NVIDIA)
	assert.True(t, status.NVIDIA.Loaded)
	assert.Equal(t, "550.54.14", status.NVIDIA.DriverVersion)
}

func TestBuildSkipsProbeForNonNVIDIADetection(t *testing.T) {
	apu := pci.NewDevice("0000:00:01.0", pci.VendorAMD, 0x15d8, 0x030000, pci.WithBootVGA())
	prober := &fakeProber{info: &nvidia.DriverInfo{Loaded: true}}

	b := NewBuilder(&fakeManager{devices: []*pci.Device{apu}}, WithProber(prober))
	status := b.Build(context.Background())

	assert.Zero(t, prober.calls, "probe only runs for an NVIDIA detection device")
	assert.Nil(t, status.NVIDIA)
	assert.Equal(t, "simple", status.Topology.Type)
}

func TestBuildRecordsCollectorFailures(t *testing.T) {
	dgpu := pci.NewDevice("0000:01:00.0", pci.VendorNVIDIA, 0x1f95, 0x030000, pci.WithBootVGA())

	b := NewBuilder(&fakeManager{devices: []*pci.Device{dgpu}},
		WithHostCollector(&fakeCollector{err: errors.New("dbus down")}),
		WithProber(&fakeProber{err: errors.New("nvml init failed")}),
	)
	status := b.Build(context.Background())

	assert.Nil(t, status.Host)
	assert.Nil(t, status.NVIDIA)
	require.Len(t, status.Errors, 2)
	assert.Contains(t, status.Errors, "host: dbus down")
	assert.Contains(t, status.Errors, "nvidia: nvml init failed")

	// Collector failures never suppress the topology itself.
	require.NotNil(t, status.Topology)
	assert.Equal(t, 1, status.Topology.Count)
}

func TestBuildEmptySystem(t *testing.T) {
	prober := &fakeProber{}
	b := NewBuilder(&fakeManager{}, WithProber(prober))
	status := b.Build(context.Background())

	assert.NotNil(t, status.Devices)
	assert.Empty(t, status.Devices)
	assert.NotNil(t, status.Providers)
	assert.Empty(t, status.Providers)
	assert.Zero(t, status.Topology.Count)
	assert.Equal(t, "simple", status.Topology.Type)
	assert.Nil(t, status.Topology.Primary)
	assert.Nil(t, status.Host, "host collection is opt-in")
	assert.Zero(t, prober.calls)
}

func TestStatusJSONShape(t *testing.T) {
	igpu := pci.NewDevice("0000:00:02.0", pci.VendorIntel, 0x9bc4, 0x030000, pci.WithBootVGA())
	b := NewBuilder(&fakeManager{devices: []*pci.Device{igpu}}, WithVersion("0.1.0"))

	raw, err := json.Marshal(b.Build(context.Background()))
	require.NoError(t, err)

	payload := string(raw)
	assert.Contains(t, payload, `"report_id"`)
	assert.Contains(t, payload, `"gpu_count":1`)
	assert.Contains(t, payload, `"type":"simple"`)
	assert.NotContains(t, payload, `"errors"`, "clean reports omit the error list")
	assert.NotContains(t, payload, `"nvidia_driver"`)
}
