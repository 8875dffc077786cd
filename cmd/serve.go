package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/review"
	"github.com/kozaktomas/photo-dedupe/internal/web"
	"github.com/kozaktomas/photo-dedupe/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Scan a library and serve the duplicates over HTTP",
	Long: `Scan a library, then start a local HTTP API that lets an external reviewer
list duplicate groups, fetch images or thumbnails, and submit which members to
delete.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/clusters
  GET  /api/v1/clusters/{id}
  POST /api/v1/clusters/{id}/decision   {"delete": ["path/in/library.jpg"]}
  GET  /api/v1/images?id=<path>[&size=<pixels>]`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addDetectFlags(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from DEDUPE_SERVER_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from DEDUPE_SERVER_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	det, err := runDetection(ctx, cmd, args)
	if err != nil {
		return err
	}
	printSummary(det.scanResult())

	serverCfg := det.cfg.Server
	if cmd.Flags().Changed("host") {
		serverCfg.Host = mustGetString(cmd, "host")
	}
	serverCfg.Port = overrideInt(cmd, "port", serverCfg.Port)

	clusters := handlers.NewClustersHandler(
		det.result.RunID,
		det.lib,
		review.NewApplier(det.lib, det.cache),
		det.result.Clusters,
	)
	server := web.NewServer(&serverCfg, clusters)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("\nServing %d duplicate groups on http://%s\n", len(det.result.Clusters), server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
