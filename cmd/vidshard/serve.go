package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/vidshard/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve placement and folder browsing over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("request-timeout")
		server := api.NewServer(provisioner, folderService, shardService, appMetrics, timeout)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTPListen)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				fmt.Printf("Server error: %v\n", err)
			}
			return
		case sig := <-sigCh:
			log.Infof("Received %s, shutting down", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	},
}

func init() {
	serveCmd.Flags().Duration("request-timeout", 60*time.Second, "Per-request timeout")
	rootCmd.AddCommand(serveCmd)
}
