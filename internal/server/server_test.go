package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/provider"
	"github.com/openldm/ldm/internal/report"
)

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

// newTestRouter serves an Optimus style system: Intel boot iGPU, NVIDIA
// dGPU with two ranked providers, plus the dGPU audio function.
func newTestRouter(token string) http.Handler {
	igpu := pci.NewDevice("0000:00:02.0", pci.VendorIntel, 0x9bc4, 0x030000, pci.WithBootVGA())
	dgpu := pci.NewDevice("0000:01:00.0", pci.VendorNVIDIA, 0x1f95, 0x030200)
	audio := pci.NewDevice("0000:01:00.1", pci.VendorNVIDIA, 0x10fa, 0x040300)

	mgr := &fakeManager{
		devices: []*pci.Device{igpu, dgpu, audio},
		providers: map[*pci.Device][]*provider.Provider{
			dgpu: {
				{Package: "nvidia-glx-driver-current", Module: "nvidia", Priority: 100},
				{Package: "nvidia-glx-driver-470", Module: "nvidia", Priority: 70},
			},
		},
	}

	api := NewAPI(report.NewBuilder(mgr), mgr, zap.NewNop())
	return newRouter(api, token, zap.NewNop())
}

func doRequest(router http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("X-LDM-Token", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthzSkipsAuth(t *testing.T) {
	router := newTestRouter("secret")

	w := doRequest(router, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestAuth(t *testing.T) {
	router := newTestRouter("secret")

	t.Run("missing token", func(t *testing.T) {
		w := doRequest(router, "/v1/status", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, w.Body.String())
	})

	t.Run("wrong token", func(t *testing.T) {
		w := doRequest(router, "/v1/status", "guess")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := doRequest(router, "/v1/status", "secret")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	router := newTestRouter("")

	w := doRequest(router, "/v1/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	router := newTestRouter("")

	w := doRequest(router, "/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Ok   bool          `json:"ok"`
		Data report.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Ok)
	assert.NotEmpty(t, body.Data.ReportID)
	require.NotNil(t, body.Data.Topology)
	assert.Equal(t, "hybrid|optimus", body.Data.Topology.Type)
	assert.Len(t, body.Data.Devices, 2)
	assert.Len(t, body.Data.Providers, 2)
}

func TestDevices(t *testing.T) {
	router := newTestRouter("")

	t.Run("gpus only", func(t *testing.T) {
		w := doRequest(router, "/v1/devices", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Ok   bool            `json:"ok"`
			Data devicesResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Data.Devices, 2)
		assert.Equal(t, "0000:00:02.0", body.Data.Devices[0].Address)
		assert.Equal(t, "0000:01:00.0", body.Data.Devices[1].Address)
	})

	t.Run("whole bus", func(t *testing.T) {
		w := doRequest(router, "/v1/devices?all=true", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Ok   bool            `json:"ok"`
			Data devicesResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data.Devices, 3)
	})
}

func TestProviders(t *testing.T) {
	router := newTestRouter("")

	w := doRequest(router, "/v1/providers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Ok   bool              `json:"ok"`
		Data providersResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data.Detection)
	assert.Equal(t, "0000:01:00.0", body.Data.Detection.Address, "hybrid detection targets the discrete gpu")
	require.Len(t, body.Data.Providers, 2)
	assert.Equal(t, "nvidia-glx-driver-current", body.Data.Providers[0].Package)
}
