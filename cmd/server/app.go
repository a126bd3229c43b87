package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	claimstore "neighborly/internal/claim/store"
	expstore "neighborly/internal/expiration/store"
	itemmodels "neighborly/internal/item/models"
	itemstore "neighborly/internal/item/store"
	"neighborly/internal/marketplace/service"
	"neighborly/internal/marketplace/sweep"
	offerstore "neighborly/internal/offer/store"
	"neighborly/internal/platform/config"
	"neighborly/internal/platform/database"
	"neighborly/internal/platform/metrics"
	"neighborly/internal/platform/redis"
	tagstore "neighborly/internal/tag/store"
	audit "neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/audit/publisher"
	kafkastore "neighborly/pkg/platform/audit/store/kafka"
	"neighborly/pkg/platform/audit/store/memory"
	pgaudit "neighborly/pkg/platform/audit/store/postgres"
)

const auditBufferSize = 1024

// app holds the wired dependencies shared by serve and sweep.
type app struct {
	cfg       config.Server
	log       *slog.Logger
	metrics   *metrics.Metrics
	db        *sql.DB
	redis     *redis.Client
	publisher *publisher.Publisher
	service   *service.Service
	scheduler *sweep.Scheduler
	closers   []func()
}

func newApp(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New(reg)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if cfg.UsesPostgres() {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	sink, err := a.auditStore(ctx)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	// Drain buffered audit events before the sinks close.
	a.closers = append(a.closers, a.publisher.Close)

	stores, targets := a.stores()
	a.service, err = service.New(stores,
		service.WithLogger(log),
		service.WithMetrics(a.metrics),
		service.WithAuditPublisher(a.publisher),
	)
	if err != nil {
		return nil, fmt.Errorf("build marketplace service: %w", err)
	}

	a.scheduler, err = sweep.New(targets,
		sweep.WithInterval(cfg.Sweep.Interval),
		sweep.WithLocker(a.locker()),
		sweep.WithLogger(log),
		sweep.WithMetrics(a.metrics),
		sweep.WithAuditPublisher(a.publisher),
	)
	if err != nil {
		return nil, fmt.Errorf("build sweep scheduler: %w", err)
	}
	return a, nil
}

// auditStore picks Kafka when brokers are configured, then Postgres, then memory.
func (a *app) auditStore(ctx context.Context) (audit.Store, error) {
	switch {
	case len(a.cfg.Kafka.Brokers) > 0:
		ks, err := kafkastore.New(ctx, a.cfg.Kafka.Brokers, a.cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, fmt.Errorf("connect audit sink: %w", err)
		}
		a.closers = append(a.closers, ks.Close)
		a.log.InfoContext(ctx, "audit events published to kafka", "topic", a.cfg.Kafka.AuditTopic)
		return ks, nil
	case a.db != nil:
		a.log.InfoContext(ctx, "audit events stored in postgres")
		return pgaudit.New(a.db), nil
	default:
		a.log.InfoContext(ctx, "audit events kept in memory")
		return memory.NewInMemoryStore(), nil
	}
}

// expirationStore is satisfied by both expiration store implementations.
type expirationStore interface {
	service.ExpirationStore
	sweep.Records
}

type itemStore interface {
	service.ItemStore
	sweep.Items
}

// stores builds the concept stores and the sweep targets over the same instances.
func (a *app) stores() (service.Stores, []sweep.Target) {
	var (
		items       = make(map[itemmodels.Kind]itemStore, len(itemmodels.Kinds))
		expirations = make(map[itemmodels.Kind]expirationStore, len(itemmodels.Kinds))
		stores      service.Stores
	)
	for _, kind := range itemmodels.Kinds {
		if a.db == nil {
			items[kind] = itemstore.NewInMemory(kind)
			expirations[kind] = expstore.NewInMemory(kind)
		} else {
			items[kind] = itemstore.NewPostgres(a.db, kind)
			expirations[kind] = expstore.NewPostgres(a.db, kind)
		}
	}
	if a.db == nil {
		stores.Offers = offerstore.NewInMemory()
		stores.Claims = claimstore.NewInMemory()
		stores.Tags = tagstore.NewInMemory()
	} else {
		stores.Offers = offerstore.NewPostgres(a.db)
		stores.Claims = claimstore.NewPostgres(a.db)
		stores.Tags = tagstore.NewPostgres(a.db)
	}
	stores.Listings = items[itemmodels.KindListing]
	stores.Requests = items[itemmodels.KindRequest]
	stores.ListingExpirations = expirations[itemmodels.KindListing]
	stores.RequestExpirations = expirations[itemmodels.KindRequest]

	targets := make([]sweep.Target, 0, len(itemmodels.Kinds))
	for _, kind := range itemmodels.Kinds {
		targets = append(targets, sweep.Target{Kind: kind, Items: items[kind], Records: expirations[kind]})
	}
	return stores, targets
}

func (a *app) locker() sweep.Locker {
	if a.redis == nil {
		return sweep.NoopLocker{}
	}
	return sweep.NewRedisLocker(a.redis.Client, a.cfg.Sweep.LockTTL, sweep.WithLockLogger(a.log))
}

// health reports the first failing backing service.
func (a *app) health(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := database.Health(ctx, a.db); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
