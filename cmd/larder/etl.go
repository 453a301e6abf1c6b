package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/larder/ingest"
	"github.com/hazyhaar/larder/kit"
	"github.com/hazyhaar/larder/watch"
)

var etlCmd = &cobra.Command{
	Use:   "etl [dir]",
	Short: "Ingest every supported file in a directory (default INPUT_DIR)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runETL,
}

var (
	etlStrict   bool
	etlWatch    bool
	etlInterval time.Duration
)

func init() {
	etlCmd.Flags().BoolVar(&etlStrict, "strict", false, "exit non-zero when any file fails")
	etlCmd.Flags().BoolVar(&etlWatch, "watch", false, "keep running and ingest files as they are dropped into the directory")
	etlCmd.Flags().DurationVar(&etlInterval, "interval", 2*time.Second, "polling interval with --watch")
	rootCmd.AddCommand(etlCmd)
}

func runETL(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := cfg.InputDir
	if len(args) == 1 {
		dir = args[0]
	}

	if etlWatch {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		err := a.ingest.Watch(ctx, dir, watch.Options{
			Interval: etlInterval,
			Debounce: etlInterval / 2,
			Logger:   logger,
		}, func(r *ingest.RunReport) {
			fmt.Fprint(cmd.OutOrStdout(), r.Summary())
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	ctx := kit.WithTransport(cmd.Context(), "cli")
	report, err := a.ingest.RunDir(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Summary())
	if etlStrict && report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, report.Failed+report.Accepted)
	}
	return nil
}
