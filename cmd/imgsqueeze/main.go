// Command imgsqueeze compresses jpeg, png and webp images on disk.
//
// Files named on the command line are ingested, compressed with the configured
// settings and saved to the configured sink. With --watch the command keeps
// running and recompresses the same files whenever the config file changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leeforge/imgsqueeze/compressor"
	"github.com/leeforge/imgsqueeze/config"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

type options struct {
	configDir string
	jsonOut   bool
	watch     bool
	stats     bool
	version   bool
	files     []string
}

func main() {
	fs := pflag.NewFlagSet("imgsqueeze", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: imgsqueeze [flags] FILE...\n\n")
		fs.PrintDefaults()
	}

	var opts options
	config.RegisterFlags(fs)
	fs.StringVar(&opts.configDir, "config", "", "directory holding config.yaml (default $"+config.PathEnvKey+" or ./config)")
	fs.BoolVar(&opts.jsonOut, "json", false, "print a JSON report instead of a table")
	fs.BoolVar(&opts.watch, "watch", false, "recompress when the config file changes")
	fs.BoolVar(&opts.stats, "stats", false, "print session metrics to stderr on exit")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.version {
		fmt.Println("imgsqueeze", version)
		return
	}
	opts.files = fs.Args()
	if len(opts.files) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fs, opts); err != nil {
		fmt.Fprintf(os.Stderr, "imgsqueeze: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, fs *pflag.FlagSet, opts options) error {
	cfgOpts := config.DefaultConfigOptions()
	if opts.configDir != "" {
		cfgOpts.BasePath = opts.configDir
	}
	cfgOpts.Flags = fs

	cfg, err := config.NewConfig(cfgOpts)
	if err != nil {
		return err
	}
	app := cfg.App()

	logger := logging.NewLogger(app.Log)
	defer logger.Close()
	logger.Debug("configuration loaded",
		zap.String("mode", string(config.CurrentMode())),
		zap.Strings("files", cfg.Files()))

	sink, err := storage.NewFromConfig(ctx, app.Storage)
	if err != nil {
		return err
	}

	bus := events.NewBus(0, logger)
	var rec *metrics.Recorder
	if opts.stats {
		rec = metrics.NewRecorder(metrics.NewCollector(), bus)
	}
	defer func() {
		bus.Close()
		if rec != nil {
			rec.Collector().WriteText(os.Stderr)
		}
	}()

	comp, err := compressor.New(compressor.Options{
		Settings:      app.Compression.Settings(),
		Workers:       app.Ingest.Workers,
		DownloadDelay: app.Download.Delay,
		Sink:          sink,
		Bus:           bus,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	out := newPrinter(os.Stdout, os.Stderr, opts.jsonOut)
	bus.Subscribe(events.TopicImageRejected, out.rejected)

	inputs, err := readInputs(opts.files)
	if err != nil {
		return err
	}
	if _, err := comp.Ingest(ctx, inputs); err != nil {
		return err
	}

	if err := compressAndSave(ctx, comp, out); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	err = cfg.Watch(ctx, logger, func(next config.AppConfig) {
		if err := comp.UpdateSettings(next.Compression.Settings()); err != nil {
			logger.Warn("settings rejected", zap.Error(err))
			return
		}
		if err := compressAndSave(ctx, comp, out); err != nil {
			logger.Error("recompression failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	logger.Info("watching for config changes", zap.String("path", cfgOpts.BasePath))
	<-ctx.Done()
	return nil
}

// compressAndSave runs one batch, saves every result and prints the outcome.
func compressAndSave(ctx context.Context, comp *compressor.Compressor, out *printer) error {
	batch, err := comp.CompressAll(ctx)
	if err != nil {
		return err
	}

	saved, saveErr := comp.DownloadAll(ctx)
	if err := out.batch(batch, comp.Settings(), saved); err != nil {
		return err
	}
	return saveErr
}
