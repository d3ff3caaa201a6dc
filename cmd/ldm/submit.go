package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/client"
	"github.com/openldm/ldm/pkg/logger"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a status report to the inventory endpoint",
	Long: `Build a full driver status report and POST it to the configured
inventory endpoint, for fleets that aggregate hardware state centrally.

Examples:
  LDM_REPORT_URL=https://inventory.example.com ldm submit
  ldm submit --url https://inventory.example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		url := cfg.ReportURL
		if flagURL, _ := cmd.Flags().GetString("url"); flagURL != "" {
			url = flagURL
		}
		if url == "" {
			fmt.Fprintln(os.Stderr, "Error: no inventory endpoint configured, set report_url or pass --url")
			os.Exit(1)
		}

		cli, err := client.New(url,
			client.WithToken(cfg.ReportToken),
			client.WithTimeout(cfg.HTTPTimeout),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		status := newBuilder(newManager(cfg, log), log).Build(ctx)

		log.Info("submitting report",
			zap.String("report_id", status.ReportID),
			zap.String("url", url))
		if err := cli.SubmitReport(ctx, status); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Submitted report %s\n", status.ReportID)
	},
}

func init() {
	submitCmd.Flags().String("url", "", "Override the inventory endpoint URL")
	rootCmd.AddCommand(submitCmd)
}
