package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/trialdash/internal/server"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	Long: `Loads and cleans the dataset, then serves the dashboard page, the JSON API,
the CSV download and Prometheus metrics. A dataset that cannot be loaded
aborts startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	scfg := server.DefaultConfig()
	if c.Listen != "" {
		scfg.Listen = c.Listen
	}
	if serveListen != "" {
		scfg.Listen = serveListen
	}
	scfg.CORSOrigins = c.CORSOrigins
	scfg.RateLimitPerMinute = c.RateLimitPerMinute
	scfg.TrustProxy = c.TrustProxy
	if c.DownloadName != "" {
		scfg.DownloadName = c.DownloadName
	}
	scfg.IncludeStartMonth = c.IncludeStartMonth

	// Set up context with signal handling.
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	srv := server.NewServer(log, scfg, newPipeline(c))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Dashboard listening on http://%s\n", srv.Addr())

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("Shutting down server")
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down server")
	}
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}
