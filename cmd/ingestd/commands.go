package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mx-pai/rss-recommendation-platform/internal/api"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the admin/metrics HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Scheduler.Enabled {
			if err := a.scheduler.Start(); err != nil {
				return err
			}
		}

		routes := api.NewFeedHost(&a.cfg.Publish, a.store, a.logger.WithName("feed")).Handlers()
		if routes == nil {
			routes = make(map[string]http.Handler)
		}
		routes["/metrics"] = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
		handler := api.NewHandler(a.fetcher, a.scheduler, a.logger.WithName("api")).Router(routes)
		srv := &http.Server{
			Addr:        a.cfg.Metrics.Addr,
			Handler:     handler,
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			a.scheduler.Stop()
			return fmt.Errorf("http server failed: %w", err)
		}

		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(err, "Failed to shutdown server")
		}
		a.scheduler.Stop()
		a.logger.Info("Shutdown complete")
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <source-id>",
	Short: "Fetch a single source once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source id %q: %w", args[0], err)
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.fetcher.FetchSource(cmd.Context(), id)
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("fetch failed: %s", result.Error)
		}
		return nil
	},
}

var fetchAllCmd = &cobra.Command{
	Use:   "fetch-all",
	Short: "Fetch every active source once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.fetcher.FetchAllActiveSources(ctx)
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("fetch-all failed: %s", result.Error)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.migrate(cmd.Context())
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage content sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a content source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		sourceType, _ := flags.GetString("type")
		feedURL, _ := flags.GetString("feed-url")
		category, _ := flags.GetString("category")
		fetchConfig, _ := flags.GetString("fetch-config")
		inactive, _ := flags.GetBool("inactive")
		frequency, _ := flags.GetDuration("frequency")

		if fetchConfig != "" && !json.Valid([]byte(fetchConfig)) {
			return fmt.Errorf("fetch config is not valid JSON")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		src := &models.Source{
			Name:           args[0],
			URL:            args[1],
			Type:           models.SourceType(sourceType).Normalize(),
			FeedURL:        feedURL,
			Category:       category,
			IsActive:       !inactive,
			FetchFrequency: int(frequency.Minutes()),
			FetchConfig:    fetchConfig,
		}
		if err := a.store.CreateSource(cmd.Context(), src); err != nil {
			return err
		}
		return printJSON(cmd, src)
	},
}

func init() {
	sourceAddCmd.Flags().String("type", string(models.SourceTypeFeed), "source type: feed, page or api")
	sourceAddCmd.Flags().String("feed-url", "", "feed URL when it differs from the source URL")
	sourceAddCmd.Flags().String("category", "", "source category")
	sourceAddCmd.Flags().String("fetch-config", "", "per-source extraction settings as JSON")
	sourceAddCmd.Flags().Bool("inactive", false, "register the source disabled")
	sourceAddCmd.Flags().Duration("frequency", time.Hour, "how often the source should be fetched")
	sourceCmd.AddCommand(sourceAddCmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
