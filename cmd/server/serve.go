package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"smpd/internal/bootstrap"
	"smpd/internal/notify"
	"smpd/internal/notify/auditlog"
	notifykafka "smpd/internal/notify/kafka"
	"smpd/internal/platform/config"
	"smpd/internal/platform/httpserver"
	"smpd/internal/platform/kafka"
	"smpd/internal/platform/logger"
	"smpd/internal/platform/metrics"
	"smpd/internal/platform/tracing"
	httptransport "smpd/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the registry and serve the ops endpoints",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdownTracing(tp, log)

	m := metrics.New()
	bus := notify.NewBus(notify.WithLogger(log), notify.WithMetrics(m))
	bus.Subscribe("audit-log", auditlog.New(log).Handle)

	opts := []httptransport.Option{
		httptransport.WithLogger(log),
		httptransport.WithMetricsHandler(promhttp.Handler()),
	}
	if cfg.Kafka.Enabled {
		publisher, closeKafka, err := openPublisher(ctx, cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer closeKafka()
		bus.Subscribe("kafka", publisher.Handle)
		opts = append(opts, httptransport.WithHealthCheck("kafka", publisher))
	}

	container := bootstrap.NewContainer(func(ctx context.Context) (*bootstrap.Registry, error) {
		backend, err := bootstrap.OpenBackend(ctx, cfg.Storage, log)
		if err != nil {
			return nil, err
		}
		reg, err := bootstrap.Build(ctx, backend, bootstrap.Deps{
			Config:  cfg,
			Logger:  log,
			Metrics: m,
			Bus:     bus,
		})
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return reg, nil
	})
	defer func() {
		if err := container.Close(); err != nil {
			log.Error("close registry", "error", err)
		}
	}()

	reg, err := container.Registry(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	log.Info("registry loaded", "backend", string(reg.Backend.Kind))

	opts = append(opts,
		httptransport.WithCounter("service_groups", reg.ServiceGroups),
		httptransport.WithCounter("redirects", reg.Redirects),
		httptransport.WithCounter("service_information", reg.ServiceInformation),
		httptransport.WithCounter("transport_profiles", reg.TransportProfiles),
		httptransport.WithCounter("sml_infos", reg.SMLInfos),
	)
	handler := httptransport.New(string(reg.Backend.Kind), reg.Settings, opts...)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

func openPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger) (*notifykafka.Publisher, func(), error) {
	client, err := kafka.NewClient(ctx, kafka.Config{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		ClientID:       cfg.ClientID,
		ProduceTimeout: cfg.ProduceTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		client.Close()
		return nil, nil, err
	}
	publisher := notifykafka.New(client, cfg.Topic,
		notifykafka.WithLogger(log),
		notifykafka.WithTimeout(cfg.ProduceTimeout),
	)
	log.Info("publishing change events", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return publisher, client.Close, nil
}

func shutdownTracing(tp *tracing.Provider, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("tracer shutdown", "error", err)
	}
}
