package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/metrics"
	"github.com/commercelake/reportfeed/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	logCloser, err := logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
		Path:   cfg.Logging.Path,
	})
	if err != nil {
		log.Fatalf("[main] logging setup failed: %v", err)
	}
	defer logCloser.Close()

	if cfg.Metrics.Enabled {
		metrics.Init("reportfeed")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Printf("[main] metrics server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Printf("[shutdown] received signal: %v", sig)
		cancel()
	}()

	p, err := pipeline.New(cfg, clock.System{})
	if err != nil {
		log.Fatalf("[main] failed to build pipeline: %v", err)
	}

	runErr := p.Run(ctx)
	p.Close()

	if runErr != nil {
		if ctx.Err() != nil {
			log.Printf("[main] run cancelled")
		}
		logCloser.Close()
		os.Exit(1)
	}
}
