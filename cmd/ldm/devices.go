package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/pkg/logger"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List GPU devices on the PCI bus",
	Long: `List the GPU devices found on the PCI bus, in bus order.

Examples:
  ldm devices
  ldm devices --all`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		mask := pci.TypePCI | pci.TypeGPU
		if all, _ := cmd.Flags().GetBool("all"); all {
			mask = pci.TypePCI
		}

		devices := newManager(cfg, log).Devices(mask)
		if len(devices) == 0 {
			fmt.Println("No matching devices found.")
			return
		}

		for _, dev := range devices {
			var notes []string
			if dev.BootVGA() {
				notes = append(notes, "boot_vga")
			}
			if dev.Driver() != "" {
				notes = append(notes, "driver "+dev.Driver())
			}
			suffix := ""
			if len(notes) > 0 {
				suffix = "  (" + strings.Join(notes, ", ") + ")"
			}

			fmt.Printf("%s  [%04x:%04x]  %-10s  %s%s\n",
				dev.Address(), uint16(dev.VendorID()), dev.ProductID(),
				dev.Type(), dev.Name(), suffix)
		}
	},
}

func init() {
	devicesCmd.Flags().Bool("all", false, "List every PCI device, not only GPUs")
	rootCmd.AddCommand(devicesCmd)
}
