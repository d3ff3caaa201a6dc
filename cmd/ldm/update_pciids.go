package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/pciids"
	"github.com/openldm/ldm/pkg/logger"
)

var updatePCIIDsCmd = &cobra.Command{
	Use:   "update-pciids",
	Short: "Download a fresh pci.ids database",
	Long: `Download the PCI ID database used to resolve human-readable device
names. The download is validated before it replaces the cached copy.

Examples:
  ldm update-pciids
  ldm update-pciids --url https://pci-ids.ucw.cz/v2.2/pci.ids`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		url := cfg.PCIIDsURL
		if flagURL, _ := cmd.Flags().GetString("url"); flagURL != "" {
			url = flagURL
		}
		dest := cfg.PCIIDsCache
		if flagDest, _ := cmd.Flags().GetString("dest"); flagDest != "" {
			dest = flagDest
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("updating pci.ids", zap.String("url", url), zap.String("dest", dest))
		if err := pciids.Update(ctx, url, dest, cfg.HTTPTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: updating pci.ids: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s\n", dest)
	},
}

func init() {
	updatePCIIDsCmd.Flags().String("url", "", "Override the download URL")
	updatePCIIDsCmd.Flags().String("dest", "", "Override the destination file")
	rootCmd.AddCommand(updatePCIIDsCmd)
}
