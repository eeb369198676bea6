package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	accounthandler "accounting/internal/account/handler"
	accountservice "accounting/internal/account/service"
	accountstore "accounting/internal/account/store"
	categoryhandler "accounting/internal/category/handler"
	categorymetrics "accounting/internal/category/metrics"
	categoryservice "accounting/internal/category/service"
	categorystore "accounting/internal/category/store"
	journalhandler "accounting/internal/journal/handler"
	journalservice "accounting/internal/journal/service"
	journalstore "accounting/internal/journal/store"
	"accounting/internal/platform/config"
	"accounting/internal/platform/kafka"
	"accounting/internal/platform/metrics"
	"accounting/internal/platform/middleware"
	"accounting/internal/platform/postgres"
	"accounting/internal/platform/redis"
	httptransport "accounting/internal/transport/http"
	"accounting/internal/transport/http/links"
	"accounting/pkg/collection"
	"accounting/pkg/platform/outbox"
	outboxstore "accounting/pkg/platform/outbox/store"
	"accounting/pkg/platform/outbox/worker"
	"accounting/pkg/platform/tx"
)

// Each store serves its own service and the cross-entity checks of another.
type categoryStore interface {
	categoryservice.Store
	accountservice.CategoryLookup
}

type accountStore interface {
	accountservice.Store
	categoryservice.AccountReferences
}

type stores struct {
	categories categoryStore
	accounts   accountStore
	journals   journalservice.Store
	outbox     outbox.Store
	runner     tx.Runner
}

type app struct {
	router       http.Handler
	worker       *worker.Worker
	storage      string
	cacheEnabled bool
	closers      []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	health := map[string]httptransport.HealthCheck{}

	var st stores
	if cfg.Database.URL == "" {
		st = memoryStores()
		a.storage = "memory"
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				a.close()
				return nil, err
			}
		}
		st = postgresStores(db, cfg)
		health["database"] = db.PingContext
		a.storage = "postgres"
	}

	platformMetrics := metrics.New()
	categoryOpts := []categoryservice.Option{
		categoryservice.WithLogger(log),
		categoryservice.WithMetrics(categorymetrics.New()),
	}
	accountOpts := []accountservice.Option{accountservice.WithLogger(log)}
	journalOpts := []journalservice.Option{journalservice.WithLogger(log)}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		categoryOpts = append(categoryOpts, categoryservice.WithCache(categorystore.NewRedisCache(redisClient.Client, cfg.Redis.CacheTTL)))
		health["redis"] = redisClient.Health
		a.cacheEnabled = true
	}

	if cfg.KafkaEnabled() {
		producer, err := kafka.New(cfg.Kafka)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			a.close()
			return nil, err
		}
		health["kafka"] = producer.Health

		categoryOpts = append(categoryOpts, categoryservice.WithEventRecorder(st.outbox))
		accountOpts = append(accountOpts, accountservice.WithEventRecorder(st.outbox))
		journalOpts = append(journalOpts, journalservice.WithEventRecorder(st.outbox))

		a.worker = worker.New(st.outbox, producer, st.runner,
			worker.WithLogger(log),
			worker.WithObserver(platformMetrics),
			worker.WithInterval(cfg.Outbox.PollInterval),
			worker.WithBatchSize(cfg.Outbox.BatchSize),
		)
	}

	categorySvc, err := categoryservice.New(st.categories, st.accounts, st.runner, categoryOpts...)
	if err != nil {
		a.close()
		return nil, err
	}
	accountSvc, err := accountservice.New(st.accounts, st.categories, st.runner, accountOpts...)
	if err != nil {
		a.close()
		return nil, err
	}
	journalSvc, err := journalservice.New(st.journals, st.runner, journalOpts...)
	if err != nil {
		a.close()
		return nil, err
	}

	publicBase, err := cfg.Server.PublicBase()
	if err != nil {
		a.close()
		return nil, err
	}
	linkCfg := links.Config{
		PublicBase: publicBase,
		Limits: collection.Limits{
			DefaultSize: cfg.Paging.DefaultPageSize,
			MaxSize:     cfg.Paging.MaxPageSize,
		},
	}

	routerCfg := httptransport.Config{
		Logger:        log,
		Metrics:       platformMetrics,
		RequiredScope: cfg.Auth.RequiredScope,
		HealthChecks:  health,
	}
	if cfg.Auth.SigningKey != "" {
		routerCfg.Auth = middleware.NewTokenValidator(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	} else {
		log.Warn("JWT_SIGNING_KEY is not set, the API is unauthenticated")
	}

	a.router = httptransport.NewRouter(routerCfg,
		categoryhandler.New(categorySvc, log, linkCfg),
		accounthandler.New(accountSvc, log, linkCfg),
		journalhandler.New(journalSvc, log, linkCfg),
	)
	return a, nil
}

// memoryStores share one MemoryRunner so a rename and its outbox entry roll
// back together.
func memoryStores() stores {
	categories := categorystore.NewInMemory()
	accounts := accountstore.NewInMemory()
	journals := journalstore.NewInMemory()
	events := outboxstore.NewInMemory()
	return stores{
		categories: categories,
		accounts:   accounts,
		journals:   journals,
		outbox:     events,
		runner:     tx.NewMemoryRunner(categories, accounts, journals, events),
	}
}

func postgresStores(db *sql.DB, cfg config.Config) stores {
	return stores{
		categories: categorystore.NewPostgres(db),
		accounts:   accountstore.NewPostgres(db),
		journals:   journalstore.NewPostgres(db),
		outbox:     outboxstore.NewPostgres(db),
		runner:     postgres.NewTxRunner(db, cfg.Database.TxTimeout),
	}
}
