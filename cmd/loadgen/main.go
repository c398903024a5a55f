package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/sayl/loadgen/internal/metrics"
	"github.com/sayl/loadgen/internal/supervisor"
	"github.com/sayl/loadgen/pkg/config"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	runtime.GOMAXPROCS(runtime.NumCPU())

	var (
		configPath string
		reportPath string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML test configuration")
	flag.StringVar(&configPath, "f", "", "path to the YAML test configuration (shorthand)")
	flag.StringVar(&reportPath, "report", "report.txt", "path to write the end-of-test summary")
	flag.BoolVar(&debug, "debug", false, "enable debug-level logging")
	flag.Parse()

	metrics.ConfigureLogger(debug)

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: loadgen -config <file.yaml>")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("received interrupt, draining workers")
		cancel()
	}()

	sup := supervisor.New(cfg)
	sup.ReportPath = reportPath

	if err := sup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}

	log.Info().Str("report", reportPath).Msg("run complete")
}
