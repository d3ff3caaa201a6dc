// Command ldm inspects the PCI bus, classifies the GPU topology and
// reports which driver packages fit the hardware.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/config"
	"github.com/openldm/ldm/internal/hardware/host"
	"github.com/openldm/ldm/internal/hardware/nvidia"
	"github.com/openldm/ldm/internal/manager"
	"github.com/openldm/ldm/internal/pciids"
	"github.com/openldm/ldm/internal/report"
	"github.com/openldm/ldm/pkg/logger"
)

// Version is overridden by the build with the release tag.
var Version = "dev"

var (
	flagDevMode  bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ldm",
	Short: "Linux driver management for GPUs",
	Long: `ldm inspects the PCI bus, classifies the GPU topology (simple,
hybrid Optimus, hybrid AMD, CrossFire or SLI) and resolves the driver
packages that fit the hardware.

Examples:
  ldm status
  ldm devices --all
  ldm providers`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDevMode, "dev", false, "Enable development logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// setup loads the configuration and builds the logger every command
// starts from. Command line flags beat config file and environment.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg, rootCmd.PersistentFlags())

	log, err := logger.New(cfg.DevMode, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}

// applyFlagOverrides copies explicitly set flags over the loaded
// configuration, so --dev=false can switch off an LDM_DEV_MODE=true
// environment.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("dev") {
		cfg.DevMode = flagDevMode
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
}

// newManager assembles the device manager from the configuration. A
// missing pci.ids database only costs human-readable device names.
func newManager(cfg *config.Config, log *zap.Logger) *manager.Manager {
	db, err := pciids.Load(cfg.PCIIDsPaths...)
	if err != nil {
		log.Warn("pci.ids unavailable, device names fall back to ids", zap.Error(err))
	}

	return manager.New(
		manager.WithSysfsRoot(cfg.SysfsRoot),
		manager.WithModaliasDirs(cfg.ModaliasDirs...),
		manager.WithPCIIDs(db),
		manager.WithLogger(log),
	)
}

// newBuilder wires the full report pipeline over the given manager.
func newBuilder(mgr *manager.Manager, log *zap.Logger) *report.Builder {
	return report.NewBuilder(mgr,
		report.WithHostCollector(host.NewGopsutilCollector()),
		report.WithProber(nvidia.NewProber()),
		report.WithLogger(log),
		report.WithVersion(Version),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
