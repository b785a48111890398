// Package app builds the service graph shared by the server and the
// event consumer.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/lib/pq" // PostgreSQL driver for the lease table
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/mailing"
	"github.com/ignite/listflow/internal/pkg/distlock"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/repository/dynamo"
	"github.com/ignite/listflow/internal/repository/memory"
	"github.com/ignite/listflow/internal/service/interaction"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/scheduling"
	"github.com/ignite/listflow/internal/service/segmentation"
	"github.com/ignite/listflow/internal/service/sending"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
	"github.com/ignite/listflow/internal/service/unsubscribe"
	"github.com/ignite/listflow/internal/ses"
	"github.com/ignite/listflow/internal/storage"
)

// App holds the wired services.
type App struct {
	Config *config.Config
	AWS    aws.Config

	Settings     *settings.Service
	Queue        *queue.Service
	Subscribers  *subscriber.Service
	Unsubscribe  *unsubscribe.Service
	Interaction  *interaction.Service
	Segmentation *segmentation.Service
	Sending      *sending.Service

	// Checks are the dependency health checks exposed on /health.
	Checks map[string]func(context.Context) error

	closers []func() error
}

type stores struct {
	subscribers subscriber.Repository
	queue       queue.Repository
	settings    settings.Repository
	dynamo      *dynamodb.Client
}

// ConfigureLogger applies the log settings.
func ConfigureLogger(cfg config.LogConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(!cfg.DisableRedact)
}

// New builds every service from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, AWS: awsCfg, Checks: map[string]func(context.Context) error{}}

	st, err := a.stores()
	if err != nil {
		return nil, err
	}

	a.Settings = settings.NewService(st.settings, cfg.Interaction.AutoConfirmTags)
	a.Queue = queue.NewService(st.queue, scheduling.NewEngine(), queue.Options{
		BatchSize:   cfg.Queue.BatchSize,
		Concurrency: cfg.Queue.Concurrency,
	})

	sesClient := ses.NewClient(sesv2.NewFromConfig(awsCfg), ses.Options{
		SourceEmail:      cfg.SES.SourceEmail,
		ConfigurationSet: cfg.SES.ConfigurationSet,
		BreakerFailures:  cfg.SES.BreakerFailures,
		BreakerTimeout:   time.Duration(cfg.SES.BreakerTimeoutSecs) * time.Second,
	})
	a.Sending = sending.NewService(sesClient, cfg.SES.SourceEmail)

	a.Subscribers = subscriber.NewService(st.subscribers, a.Settings, a.Queue, sesClient, mailing.NewTemplateService(), subscriber.Options{
		SourceEmail:          cfg.SES.SourceEmail,
		ConfirmationTemplate: cfg.SES.ConfirmationTemplate,
		APIURL:               cfg.Public.APIURL,
		DefaultList:          cfg.Public.DefaultList,
	})
	a.Unsubscribe = unsubscribe.NewService(a.Subscribers, a.Settings, a.Queue, unsubscribe.Options{
		PageURL: cfg.Public.UnsubscribePageURL,
		APIURL:  cfg.Public.APIURL,
	})
	a.Interaction = interaction.NewService(a.Subscribers, a.Settings, a.Queue, nil)

	locks, err := a.leases(ctx, st)
	if err != nil {
		a.Close()
		return nil, err
	}
	archiver, err := a.archive()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Segmentation = segmentation.NewService(a.Settings, sesClient, locks, archiver, segmentation.Options{})

	a.Checks["settings"] = func(ctx context.Context) error {
		_, err := a.Settings.Lists(ctx)
		return err
	}
	return a, nil
}

func (a *App) stores() (*stores, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory stores; data is lost on restart")
		return &stores{
			subscribers: memory.NewSubscriberRepository(),
			queue:       memory.NewQueueRepository(),
			settings:    memory.NewSettingsRepository(),
		}, nil
	case config.StoreDynamo:
		client := dynamo.NewClient(a.AWS, cfg.AWS.Endpoint)
		tables := cfg.Tables()
		return &stores{
			subscribers: dynamo.NewSubscriberRepo(client, tables.Subscribers),
			queue:       dynamo.NewQueueRepo(client, tables.Queue),
			settings:    dynamo.NewSettingsRepo(client, tables.Settings),
			dynamo:      client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// leases builds the broadcast lease factory. The in-memory store has no
// DynamoDB table, so its default backend is an embedded Redis, started
// only when lease.embedded is set.
func (a *App) leases(ctx context.Context, st *stores) (distlock.Factory, error) {
	cfg := a.Config
	backend := cfg.Lease.Backend
	b := distlock.Backends{SettingsTable: cfg.Tables().Settings}
	if st.dynamo != nil {
		b.Dynamo = st.dynamo
	}

	switch {
	case backend == distlock.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, rdb.Close)
		a.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		b.Redis = rdb
	case backend == distlock.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening lease database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := distlock.EnsureLeaseTable(ctx, db); err != nil {
			return nil, fmt.Errorf("creating lease table: %w", err)
		}
		a.Checks["postgres"] = db.PingContext
		b.DB = db
	case st.dynamo == nil:
		if !cfg.Lease.Embedded {
			return nil, fmt.Errorf("lease backend %q needs the dynamodb store; set lease.backend to redis or postgres, or lease.embedded for local runs", backend)
		}
		logger.Warn("using embedded redis for the broadcast lease; not shared between processes")
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("starting embedded redis: %w", err)
		}
		a.closers = append(a.closers, func() error { mr.Close(); return nil })
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		a.closers = append(a.closers, rdb.Close)
		b.Redis = rdb
		backend = distlock.BackendRedis
	}
	return distlock.NewFactory(backend, cfg.Lease.Key, cfg.Lease.TTL(), b)
}

// archive returns the broadcast archive, or nil when archiving is off.
func (a *App) archive() (segmentation.Archiver, error) {
	cfg := a.Config.Archive
	var client storage.S3API
	if cfg.Bucket != "" {
		client = s3.NewFromConfig(a.AWS)
	}
	arch, err := storage.New(cfg, client)
	if err != nil {
		return nil, err
	}
	if arch == nil {
		return nil, nil
	}
	return arch, nil
}

// Close releases connections opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
