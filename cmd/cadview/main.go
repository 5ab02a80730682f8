// Package main is the entry point for the cadview desktop viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/app"
	"github.com/Faultbox/cadview/internal/config"
	"github.com/Faultbox/cadview/internal/desktop"
	"github.com/Faultbox/cadview/internal/logger"
)

var (
	flagWatch   = flag.Bool("watch", false, "Reload the open file when it changes on disk")
	flagShotDir = flag.String("screenshots", "", "Directory for screenshots (P key)")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log.Info("=== cadview ===")
	log.Debug("config", zap.Any("config", cfg))

	stack := app.Build(cfg, log)
	defer func() {
		if err := stack.Close(context.Background()); err != nil {
			log.Warn("kernel close", zap.Error(err))
		}
	}()

	opts := desktop.Options{Watch: *flagWatch, ScreenDir: *flagShotDir}
	if args := config.Args(); len(args) > 0 {
		opts.InitialArg = args[0]
	}

	d, err := desktop.New(cfg, stack, opts, log)
	if err != nil {
		log.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Run(); err != nil {
		log.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("viewer closed normally")
}
