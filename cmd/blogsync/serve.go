package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/eringen/blogsync"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Check images periodically and serve the latest report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			cfg, log, err := g.load()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			observer, err := blogsync.NewPrometheusObserver("blogsync", reg)
			if err != nil {
				return err
			}

			opts := []blogsync.Option{blogsync.WithLogger(log), blogsync.WithObserver(observer)}
			ledger, err := openLedger(cfg, log)
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
				opts = append(opts, blogsync.WithLedger(ledger))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := blogsync.NewServer(cfg, blogsync.NewChecker(cfg, opts...), ledger, reg, log)
			stopMonitor := srv.StartMonitor(ctx, interval)
			defer stopMonitor()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("shutdown")
				}
			}()
			return srv.Start(addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen address")
	f.DurationVar(&interval, "interval", 15*time.Minute, "time between reachability checks")
	return cmd
}
