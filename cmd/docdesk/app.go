package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docdesk/internal/adapters/driven/ai"
	"github.com/custodia-labs/docdesk/internal/adapters/driven/auth"
	"github.com/custodia-labs/docdesk/internal/adapters/driven/localfs"
	"github.com/custodia-labs/docdesk/internal/adapters/driven/mail"
	"github.com/custodia-labs/docdesk/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/docdesk/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/docdesk/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/docdesk/internal/adapters/driven/redis"
	"github.com/custodia-labs/docdesk/internal/adapters/driven/sharepoint"
	"github.com/custodia-labs/docdesk/internal/adapters/driving/http"
	"github.com/custodia-labs/docdesk/internal/config"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
	"github.com/custodia-labs/docdesk/internal/core/services"
	"github.com/custodia-labs/docdesk/internal/extractors"
	"github.com/custodia-labs/docdesk/internal/worker"
)

// app holds the wired adapters and services shared by every command
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client
	queue       driven.TaskQueue
	lock        driven.DistributedLock
	source      driven.DocumentSource

	documents driven.DocumentStore
	requests  driven.RequestStore
	responses driven.ResponseStore

	// Nil when the analyzer or the inbox is not configured
	indexer *services.Indexer
	intake  *services.IntakeEngine

	review   *services.ReviewService
	auth     driving.AuthService
	pipeline driving.PipelineTrigger

	closers []io.Closer
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error

	// ===== PostgreSQL =====
	dbConfig := postgres.DefaultConfig(cfg.Database.URL)
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	a.db, err = postgres.Connect(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, a.db)
	if err := a.db.InitSchema(ctx); err != nil {
		return nil, err
	}
	logger.Info("postgres connected and schema initialized")

	a.documents = postgres.NewDocumentStore(a.db)
	a.requests = postgres.NewRequestStore(a.db)
	a.responses = postgres.NewResponseStore(a.db)

	// ===== Redis (optional) =====
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, a.redisClient)
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis connected")
	}

	// ===== Task queue and distributed lock (Redis if available, otherwise PostgreSQL) =====
	if a.redisClient != nil {
		hostname, _ := os.Hostname()
		q, err := redisqueue.NewQueue(ctx, a.redisClient, fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		a.queue = q
		a.lock = redisadapter.NewLock(a.redisClient, redisadapter.LockConfig{})
		logger.Info("using redis task queue and lock")
	} else {
		a.queue = postgresqueue.NewQueue(a.db.DB)
		a.lock = postgres.NewAdvisoryLock(a.db)
		logger.Info("using postgres task queue and advisory lock")
	}
	a.closers = append(a.closers, a.queue)

	// ===== Document source =====
	a.source, err = newDocumentSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := a.source.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	// ===== Content analyzer =====
	llm, err := ai.NewFactory().CreateLLMService(ctx, &cfg.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	var analyzer *services.ContentAnalyzer
	if llm != nil {
		analyzer = services.NewContentAnalyzer(llm)
		logger.Info("content analyzer configured", "provider", cfg.Analyzer.Provider, "model", cfg.Analyzer.Model)
	} else {
		logger.Warn("content analyzer not configured, indexing and intake are disabled", "provider", cfg.Analyzer.Provider)
	}

	if analyzer != nil {
		a.indexer = services.NewIndexer(services.IndexerConfig{
			Source:     a.source,
			Documents:  a.documents,
			Extractors: extractors.DefaultRegistry(),
			Analyzer:   analyzer,
			Lock:       a.lock,
			Logger:     logger,
		})
	}

	// ===== Mail =====
	if analyzer != nil && cfg.IntakeEnabled() {
		imapConfig := mail.DefaultIMAPConfig()
		imapConfig.Host = cfg.Mail.IMAP.Host
		imapConfig.Port = cfg.Mail.IMAP.Port
		imapConfig.Username = cfg.Mail.IMAP.Username
		imapConfig.Password = cfg.Mail.IMAP.Password
		imapConfig.Security = mail.Security(cfg.Mail.IMAP.Security)
		imapConfig.Mailbox = cfg.Mail.IMAP.Mailbox
		imapConfig.Logger = logger
		inbox, err := mail.NewIMAPSource(imapConfig)
		if err != nil {
			return nil, fmt.Errorf("create imap source: %w", err)
		}
		a.intake = services.NewIntakeEngine(services.IntakeEngineConfig{
			Source:    inbox,
			Parser:    mail.NewParser(),
			Requests:  a.requests,
			Responses: a.responses,
			Documents: a.documents,
			Analyzer:  analyzer,
			Lock:      a.lock,
			Logger:    logger,
		})
	}

	var dispatcher driven.MailDispatcher
	if cfg.SendEnabled() {
		smtpConfig := mail.DefaultSMTPConfig()
		smtpConfig.Host = cfg.Mail.SMTP.Host
		smtpConfig.Port = cfg.Mail.SMTP.Port
		smtpConfig.Username = cfg.Mail.SMTP.Username
		smtpConfig.Password = cfg.Mail.SMTP.Password
		smtpConfig.Security = mail.Security(cfg.Mail.SMTP.Security)
		smtpConfig.From = cfg.Mail.SMTP.From
		smtpConfig.FromName = cfg.Mail.SMTP.FromName
		smtpConfig.Logger = logger
		d, err := mail.NewDispatcher(smtpConfig)
		if err != nil {
			return nil, fmt.Errorf("create smtp dispatcher: %w", err)
		}
		dispatcher = d
	} else {
		logger.Warn("smtp not configured, approved replies cannot be sent")
	}

	a.review = services.NewReviewService(services.ReviewServiceConfig{
		Requests:   a.requests,
		Responses:  a.responses,
		Documents:  a.documents,
		Source:     a.source,
		Dispatcher: dispatcher,
		Lock:       a.lock,
		Logger:     logger,
	})
	a.auth = services.NewAuthService(cfg.Auth.Reviewers, auth.NewAdapter(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	a.pipeline = services.NewPipelineTrigger(a.queue, cfg.Source.RootPath, logger)

	ready = true
	return a, nil
}

func newDocumentSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.DocumentSource, error) {
	switch cfg.Source.Kind {
	case config.SourceLocal:
		src, err := localfs.NewSource(cfg.Source.LocalDir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using local document source", "dir", cfg.Source.LocalDir)
		return src, nil
	default:
		spConfig := sharepoint.DefaultConfig()
		spConfig.TenantID = cfg.Source.SharePoint.TenantID
		spConfig.ClientID = cfg.Source.SharePoint.ClientID
		spConfig.ClientSecret = cfg.Source.SharePoint.ClientSecret
		spConfig.SiteURL = cfg.Source.SharePoint.SiteURL
		spConfig.Logger = logger
		src, err := sharepoint.NewSource(ctx, spConfig)
		if err != nil {
			return nil, fmt.Errorf("create sharepoint source: %w", err)
		}
		logger.Info("using sharepoint document source", "site", cfg.Source.SharePoint.SiteURL)
		return src, nil
	}
}

// newServer builds the HTTP API over the app's services.
// extra adds readiness checks owned by the caller, such as an in-process worker.
func (a *app) newServer(extra map[string]http.Pinger) *http.Server {
	checks := map[string]http.Pinger{
		"database": a.db,
		"queue":    a.queue,
	}
	for name, check := range extra {
		checks[name] = check
	}
	if a.redisClient != nil {
		checks["redis"] = pingFunc(func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
	}

	return http.NewServer(http.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		Version:        version,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.logger,
	}, http.Services{
		Auth:      a.auth,
		Documents: services.NewDocumentService(a.documents),
		Review:    a.review,
		Pipeline:  a.pipeline,
	}, checks)
}

// newScheduler builds the scheduler and seeds it from the configured intervals
func (a *app) newScheduler(ctx context.Context) (*services.Scheduler, error) {
	scheduler := services.NewScheduler(services.SchedulerConfig{
		Store:        postgres.NewSchedulerStore(a.db),
		TaskQueue:    a.queue,
		Lock:         a.lock,
		Logger:       a.logger,
		PollInterval: a.cfg.Scheduler.PollInterval,
	})
	if err := scheduler.Seed(ctx, a.cfg.ScheduledTasks()); err != nil {
		return nil, fmt.Errorf("seed schedules: %w", err)
	}
	return scheduler, nil
}

// newWorker builds the task worker, with the scheduler when enabled
func (a *app) newWorker(ctx context.Context) (*worker.Worker, error) {
	var scheduler *services.Scheduler
	if a.cfg.Scheduler.Enabled {
		var err error
		if scheduler, err = a.newScheduler(ctx); err != nil {
			return nil, err
		}
	} else {
		a.logger.Info("scheduler disabled")
	}

	wcfg := worker.WorkerConfig{
		TaskQueue:      a.queue,
		Scheduler:      scheduler,
		DefaultRoot:    a.cfg.Source.RootPath,
		Logger:         a.logger,
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	}
	if a.indexer != nil {
		wcfg.Indexing = a.indexer
	}
	if a.intake != nil {
		wcfg.Intake = a.intake
	}
	return worker.NewWorker(wcfg), nil
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error during shutdown", "error", err)
	}
}
