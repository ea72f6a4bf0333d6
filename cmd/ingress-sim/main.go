// Command ingress-sim streams a synthetic graph through a simulated cluster
// of edgeshard ingresses and prints the resulting partition quality.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arloliu/edgeshard/cmd/ingress-sim/internal/config"
	"github.com/arloliu/edgeshard/cmd/ingress-sim/internal/runner"
	"github.com/arloliu/edgeshard/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ingress-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Parse([]byte("{}"))
	} else {
		cfg, err = config.LoadConfig(configPath)
	}
	if err != nil {
		return err
	}

	log := logging.NewText(os.Stderr, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *prometheus.Registry
	if cfg.Metrics.Prometheus.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv := runner.NewMetricsServer(fmt.Sprintf(":%d", cfg.Metrics.Prometheus.Port), reg, log)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}

	report, err := runner.New(cfg, log, registerer).Run(ctx)
	if err != nil {
		return err
	}

	return report.Print(os.Stdout)
}
