package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openldm/ldm/internal/server"
	"github.com/openldm/ldm/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the driver status HTTP API",
	Long: `Serve device enumeration, GPU topology and provider lookups over
HTTP. Set auth_token (or LDM_AUTH_TOKEN) to require the X-LDM-Token
header on the /v1 routes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := setup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync(log)

		log.Info("starting", zap.String("version", Version), zap.String("config", cfg.String()))

		mgr := newManager(cfg, log)
		api := server.NewAPI(newBuilder(mgr, log), mgr, log)
		srv := server.NewServer(cfg.ListenAddr, api, cfg.AuthToken, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Run()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: http server: %v\n", err)
				os.Exit(1)
			}
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("shutdown incomplete", zap.Error(err))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
