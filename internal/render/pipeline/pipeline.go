// internal/render/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"render-workers/internal/audit"
	awsclients "render-workers/internal/common/aws"
	"render-workers/internal/common/config"
	"render-workers/internal/common/database"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/observability"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/orchestrator"
	"render-workers/internal/render/readiness"
	"render-workers/internal/render/retry"
	"render-workers/internal/render/timing"
	"render-workers/internal/renderclient"
	"render-workers/internal/stores/pgstore"
	"render-workers/internal/stores/redisstore"
)

// RetryFunc runs a connection attempt, possibly several times.
type RetryFunc func(operation func() error, name string) error

type Options struct {
	// Retry wraps every connection attempt. Nil means a single attempt.
	Retry         RetryFunc
	Observability *observability.Observability
	Logger        logger.Logger
}

// Pipeline is the wired render stack shared by the worker manager and the
// batch tool.
type Pipeline struct {
	Store        orchestrator.RecordStore
	Gate         *readiness.Gate
	Orchestrator *orchestrator.Orchestrator

	ping    func(ctx context.Context) error
	closers []func() error
	logger  logger.Logger
}

// Open connects the configured record store and optional escalation and
// audit sinks, then builds the orchestrator on top of them.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	attempt := opts.Retry
	if attempt == nil {
		attempt = func(operation func() error, _ string) error { return operation() }
	}

	p := &Pipeline{logger: log.WithFields(map[string]interface{}{"component": "render-pipeline"})}

	if err := p.openStore(ctx, cfg, attempt, log); err != nil {
		p.Close()
		return nil, err
	}

	service := renderclient.New(RenderClientConfig(cfg.Render), log)
	policy := retry.NewPolicy(RetryConfig(cfg.Retry))
	p.Gate = readiness.NewGate(GateConfig(cfg), log)

	orchOpts := orchestrator.Options{
		Store:         p.Store,
		Gate:          p.Gate,
		Composer:      timing.NewComposer(ComposerConfig(cfg.Composer), log),
		Monitor:       monitor.NewMonitor(service, policy, MonitorConfig(cfg.Monitor), log),
		Observability: opts.Observability,
		Logger:        log,
	}

	escalator, err := newEscalator(ctx, cfg.Notifications, log)
	if err != nil {
		p.Close()
		return nil, err
	}
	if escalator != nil {
		orchOpts.Escalator = escalator
	}

	if cfg.Audit.Enabled {
		indexer, err := openAudit(ctx, cfg, attempt, log)
		if err != nil {
			p.Close()
			return nil, err
		}
		orchOpts.Audit = indexer
	}

	orch, err := orchestrator.New(orchOpts)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Orchestrator = orch
	return p, nil
}

func (p *Pipeline) openStore(ctx context.Context, cfg *config.Config, attempt RetryFunc, log logger.Logger) error {
	switch cfg.Store.Backend {
	case "postgres":
		var pg *database.PostgresClient
		err := attempt(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			return nil
		}, "PostgreSQL connection")
		if err != nil {
			return fmt.Errorf("record store: %w", err)
		}
		p.closers = append(p.closers, pg.Close)

		store := pgstore.New(pg.DB, cfg.Store.Table, log)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("record store: %w", err)
		}
		p.Store, p.ping = store, pg.Ping

	case "redis":
		var rdb *database.RedisClient
		err := attempt(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rdb.Ping(ctx); err != nil {
				rdb.Close()
				return err
			}
			return nil
		}, "Redis connection")
		if err != nil {
			return fmt.Errorf("record store: %w", err)
		}
		p.closers = append(p.closers, rdb.Close)
		p.Store, p.ping = redisstore.New(rdb.Client, cfg.Store.KeyPrefix, log), rdb.Ping

	default:
		return fmt.Errorf("record store: unknown backend %q", cfg.Store.Backend)
	}

	p.logger.Info("record store ready", map[string]interface{}{"backend": cfg.Store.Backend})
	return nil
}

// newEscalator returns nil when no channel is enabled.
func newEscalator(ctx context.Context, n config.NotificationConfig, log logger.Logger) (*awsclients.Escalator, error) {
	if !n.SNS.Enabled && !n.Email.Enabled {
		return nil, nil
	}

	var (
		snsClient awsclients.SNSPublisher
		sesClient awsclients.SESSender
	)
	if n.SNS.Enabled {
		c, err := awsclients.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("escalation: %w", err)
		}
		snsClient = c
	}
	if n.Email.Enabled {
		c, err := awsclients.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("escalation: %w", err)
		}
		sesClient = c
	}

	return awsclients.NewEscalator(awsclients.EscalatorConfig{
		TopicARN:  n.SNS.TopicARN,
		FromEmail: n.Email.FromEmail,
		ToEmails:  n.Email.ToEmails,
	}, snsClient, sesClient, log), nil
}

func openAudit(ctx context.Context, cfg *config.Config, attempt RetryFunc, log logger.Logger) (*audit.Indexer, error) {
	var es *database.ElasticsearchClient
	err := attempt(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, "Elasticsearch connection")
	if err != nil {
		return nil, fmt.Errorf("audit index: %w", err)
	}

	indexer := audit.NewIndexer(es.Client, cfg.Audit.Index, log)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("audit index: %w", err)
	}
	return indexer, nil
}

// Ping checks the record store connection.
func (p *Pipeline) Ping(ctx context.Context) error {
	if p.ping == nil {
		return errors.New("record store not connected")
	}
	return p.ping(ctx)
}

// Close releases store connections in reverse order of opening.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
