package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openldm/ldm/internal/report"
	"github.com/openldm/ldm/pkg/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the GPU topology and driver status",
	Long: `Classify the GPU topology of this system and report the matching
driver providers, the host identity and the NVIDIA driver state.

Examples:
  ldm status
  ldm status --json`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		status := newBuilder(newManager(cfg, log), log).Build(ctx)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: rendering report: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		printStatus(status)
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print the full report as JSON")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(status *report.Status) {
	if status.Host != nil {
		fmt.Printf("Host:          %s (%s %s, %s)\n",
			status.Host.Hostname, status.Host.Platform,
			status.Host.PlatformVersion, status.Host.KernelVersion)
	}

	topo := status.Topology
	fmt.Printf("Configuration: %s (%d GPUs)\n", topo.Type, topo.Count)
	printDevice("Primary", topo.Primary)
	printDevice("Secondary", topo.Secondary)
	printDevice("Detection", topo.Detection)

	if status.NVIDIA != nil {
		if status.NVIDIA.Loaded {
			fmt.Printf("NVIDIA driver: loaded, version %s (%s)\n",
				status.NVIDIA.DriverVersion, status.NVIDIA.Source)
		} else {
			fmt.Printf("NVIDIA driver: not loaded\n")
		}
	}

	if len(status.Providers) == 0 {
		fmt.Println("\nNo driver providers match this hardware.")
	} else {
		fmt.Println("\nProviders (best first):")
		for _, p := range status.Providers {
			fmt.Printf("  %-28s  priority %-4d  module %s\n", p.Package, p.Priority, p.Module)
		}
	}

	if len(status.Errors) > 0 {
		fmt.Println("\nProblems while gathering the report:")
		for _, e := range status.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
}

func printDevice(label string, dev *report.Device) {
	if dev == nil {
		return
	}
	marker := ""
	if dev.BootVGA {
		marker = "  (boot display)"
	}
	fmt.Printf("%-14s %s [%s]%s\n", label+":", dev.Name, dev.Address, marker)
}
