package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bmcpi/efiboot/api"
	apibootsource "github.com/bmcpi/efiboot/api/bootsource"
	"github.com/bmcpi/efiboot/api/health"
	"github.com/bmcpi/efiboot/api/metrics"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the boot source, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, vars, err := a.resolver()
			if err != nil {
				return err
			}
			logger := slog.New(logr.ToSlogHandler(a.cfg.Log.WithName("api")))

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				metrics.NewCollector(logger, r),
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			srv := api.New(a.cfg, logger)
			srv.AddHandler("GET /v1/boot-source", apibootsource.New(logger, r))
			srv.AddHandler("GET /healthcheck", health.New(logger, GitRev, startTime, vars))
			srv.AddHandler("GET /metrics", metrics.New(logger, reg))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-ctx.Done()
				a.cfg.Log.Info("shutting down")
				return srv.Shutdown()
			})
			return g.Wait()
		},
	}

	cmd.Flags().String("address", "127.0.0.1", "address to listen on")
	cmd.Flags().Int("port", 9420, "port to listen on")
	mustBind(a.v, "address", cmd.Flags().Lookup("address"))
	mustBind(a.v, "port", cmd.Flags().Lookup("port"))
	return cmd
}
