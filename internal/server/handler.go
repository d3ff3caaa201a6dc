package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/hardware/gpu"
	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/provider"
	"github.com/openldm/ldm/internal/report"
)

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type devicesResponse struct {
	Devices []report.Device `json:"devices"`
}

type providersResponse struct {
	Detection *report.Device       `json:"detection,omitempty"`
	Providers []*provider.Provider `json:"providers"`
}

// API holds the handlers of the HTTP surface.
type API struct {
	builder *report.Builder
	mgr     gpu.DeviceManager
	log     *zap.Logger
}

// NewAPI creates the handler set. The builder produces full status
// reports, the manager answers the cheaper device and provider lookups.
func NewAPI(builder *report.Builder, mgr gpu.DeviceManager, log *zap.Logger) *API {
	return &API{builder: builder, mgr: mgr, log: log}
}

func (a *API) registerRoutes(router *gin.Engine, token string) {
	router.GET("/healthz", a.healthz)

	v1 := router.Group("/v1", authMiddleware(token))
	v1.GET("/status", a.status)
	v1.GET("/devices", a.devices)
	v1.GET("/providers", a.providers)
}

func (a *API) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) status(c *gin.Context) {
	status := a.builder.Build(c.Request.Context())
	c.JSON(http.StatusOK, response{Ok: true, Data: status})
}

// devices lists GPU devices, or the whole PCI bus with ?all=true.
func (a *API) devices(c *gin.Context) {
	mask := pci.TypePCI | pci.TypeGPU
	if all, _ := strconv.ParseBool(c.Query("all")); all {
		mask = pci.TypePCI
	}

	devices := make([]report.Device, 0)
	for _, dev := range a.mgr.Devices(mask) {
		devices = append(devices, report.Summarize(dev))
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: devicesResponse{Devices: devices}})
}

// providers resolves the driver providers for the detection device of
// the current topology.
func (a *API) providers(c *gin.Context) {
	cfg := gpu.NewConfig(a.mgr, gpu.WithLogger(a.log))

	data := providersResponse{Providers: make([]*provider.Provider, 0)}
	if dev := cfg.DetectionDevice(); dev != nil {
		s := report.Summarize(dev)
		data.Detection = &s
	}
	if providers := cfg.Providers(); providers != nil {
		data.Providers = providers
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: data})
}
