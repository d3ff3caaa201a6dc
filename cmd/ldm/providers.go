package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openldm/ldm/internal/hardware/gpu"
	"github.com/openldm/ldm/pkg/logger"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List driver providers for this system",
	Long: `Classify the GPU topology and list the driver providers matching
the device driver detection runs against, best first.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		mgr := newManager(cfg, log)
		c := gpu.NewConfig(mgr, gpu.WithLogger(log))

		detection := c.DetectionDevice()
		if detection == nil {
			fmt.Println("No GPUs found.")
			return
		}
		fmt.Printf("Detection device: %s [%s]\n", detection.Name(), detection.Address())

		providers := c.Providers()
		if len(providers) == 0 {
			fmt.Println("No driver providers match this hardware.")
			return
		}

		fmt.Println("Providers (best first):")
		for _, p := range providers {
			fmt.Printf("  %-28s  priority %-4d  module %s\n", p.Package, p.Priority, p.Module)
		}
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
