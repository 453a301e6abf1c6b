// Command larder ingests supplier price lists and recipe files into a JSON
// record store and serves it over HTTP and MCP.
//
// Usage:
//
//	larder serve              # HTTP API + front-end on LISTEN (:5000)
//	larder etl [dir]          # ingest every supported file in dir (INPUT_DIR)
//	larder etl --watch [dir]  # keep ingesting files dropped into dir
//	larder mcp                # MCP tools over stdio
//
// Configuration comes from --config (YAML) and the environment, see .env.example.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/larder/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "larder",
	Short:         "Ingest price lists and recipes into a JSON record store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables override it)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("larder", "error", err)
		fmt.Fprintln(os.Stderr, "larder:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the JSON logger on w.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
