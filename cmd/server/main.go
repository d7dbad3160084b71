package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	httpapi "wrls/internal/http"
	jwttoken "wrls/internal/jwt_token"
	"wrls/internal/notices/fetch"
	"wrls/internal/notices/handler"
	noticesmetrics "wrls/internal/notices/metrics"
	"wrls/internal/notices/outbox"
	"wrls/internal/notices/service"
	"wrls/internal/notices/session"
	"wrls/internal/notices/store"
	"wrls/internal/notices/templates"
	"wrls/internal/platform/config"
	"wrls/internal/platform/httpserver"
	"wrls/internal/platform/kafka"
	"wrls/internal/platform/logger"
	"wrls/internal/platform/metrics"
	"wrls/internal/platform/postgres"
	"wrls/internal/platform/redis"
)

// infra holds the backing services chosen from configuration.
type infra struct {
	source    fetch.Source
	events    eventStore
	sessions  service.SessionStore
	publisher outbox.Publisher
	health    map[string]httpapi.HealthCheck
	closers   []func()
}

type eventStore interface {
	service.EventStore
	outbox.Store
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/notices.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	templates.MustValidate()
	if err := templates.Configure(cfg.Notify.TemplateIDs); err != nil {
		return err
	}
	if missing := templates.Unconfigured(); len(missing) > 0 {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("notify template ids missing for: %s", strings.Join(missing, ", "))
		}
		log.Warn("notify template ids not configured, notifications will carry no template id",
			"message_refs", missing,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(deps.closers) - 1; i >= 0; i-- {
			deps.closers[i]()
		}
	}()

	noticeMetrics := noticesmetrics.New()
	tracer := otel.Tracer("wrls/notices")

	fetcher, err := fetch.New(deps.source,
		fetch.WithLogger(log),
		fetch.WithMetrics(noticeMetrics),
		fetch.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	svc, err := service.New(fetcher, deps.sessions, deps.events,
		service.WithLogger(log),
		service.WithMetrics(noticeMetrics),
		service.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	relay, err := outbox.NewRelay(deps.events, deps.publisher,
		outbox.WithLogger(log),
		outbox.WithMetrics(noticeMetrics),
		outbox.WithInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
	)
	if err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	router := httpapi.NewRouter(httpapi.Deps{
		Notices:   handler.New(svc, log),
		Validator: jwttoken.NewJWTServiceAdapter(jwt),
		StaffRole: cfg.Server.StaffRole,
		Metrics:   metrics.New(),
		Health:    deps.health,
		Logger:    log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting wrls notices", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		return httpserver.Run(ctx, srv, 10*time.Second)
	})
	g.Go(func() error {
		return relay.Run(ctx)
	})
	return g.Wait()
}

// buildInfra picks postgres, redis and kafka when configured and in-memory
// fallbacks otherwise.
func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{health: map[string]httpapi.HealthCheck{}}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() { _ = db.Close() })
		if err := store.Migrate(ctx, db); err != nil {
			return nil, err
		}
		deps.source = store.NewPostgresSource(db)
		deps.events = store.NewPostgresEventStore(db)
		deps.health["postgres"] = func(ctx context.Context) error { return postgres.Health(ctx, db) }
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		deps.source = store.NewMemorySource()
		deps.events = store.NewMemoryEventStore()
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		deps.closers = append(deps.closers, func() { _ = rdb.Close() })
		deps.sessions = session.NewRedis(rdb.Client, session.WithRedisTTL(cfg.SessionTTL))
		deps.health["redis"] = rdb.Health
	} else {
		log.Warn("REDIS_URL not set, using in-memory session store")
		deps.sessions = session.NewInMemory(cfg.SessionTTL)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID},
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic,
			int32(cfg.Kafka.Partitions), int16(cfg.Kafka.ReplicationFactor)); err != nil {
			return nil, err
		}
		deps.publisher = outbox.NewKafkaPublisher(client, cfg.Kafka.Topic)
		deps.health["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, client) }
	} else {
		log.Warn("KAFKA_BROKERS not set, notifications are logged instead of published")
		deps.publisher = outbox.NewLogPublisher(log)
	}

	return deps, nil
}
