package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mx-pai/rss-recommendation-platform/internal/config"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "ingestd",
	Short: "Fetch, extract and enrich articles from RSS feeds and web pages",
	Long: `ingestd polls configured content sources, extracts articles from feeds and
browser-rendered pages, enriches them and stores them keyed by URL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./ingestd.yaml)")
	rootCmd.PersistentFlags().String("store", config.StorePostgres, "storage backend: postgres or memory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "log file, empty for stdout")
	_ = v.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(serveCmd, fetchCmd, fetchAllCmd, migrateCmd, sourceCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
