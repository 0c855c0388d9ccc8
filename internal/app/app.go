package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semmidev/keepsake/internal/adapter/compressor"
	"github.com/semmidev/keepsake/internal/adapter/httpapi"
	"github.com/semmidev/keepsake/internal/adapter/metadata"
	"github.com/semmidev/keepsake/internal/adapter/notifier"
	"github.com/semmidev/keepsake/internal/adapter/source"
	"github.com/semmidev/keepsake/internal/adapter/storage"
	"github.com/semmidev/keepsake/internal/config"
	"github.com/semmidev/keepsake/internal/domain"
	"github.com/semmidev/keepsake/internal/infrastructure/logger"
	"github.com/semmidev/keepsake/internal/infrastructure/metrics"
	"github.com/semmidev/keepsake/internal/infrastructure/scheduler"
	"github.com/semmidev/keepsake/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	records   domain.MetadataStore
	service   *Service
	cleanupUC *usecase.Cleanup
	server    *http.Server
}

type Option func(*options)

type options struct {
	console    io.Writer
	noNotifier bool
}

// WithConsole sends console logs to w instead of stdout.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithoutNotifier skips the Telegram bot, for one-shot commands.
func WithoutNotifier() Option {
	return func(o *options) { o.noNotifier = true }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log, err := logger.New(logger.Options{
		Name:      cfg.App.Name,
		Level:     cfg.App.LogLevel,
		File:      cfg.App.LogFile,
		ErrorFile: cfg.App.ErrorLogFile,
		Console:   o.console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	backups := storage.NewLocal(cfg.Backup.Dir)
	restores := storage.NewLocal(cfg.Backup.RestoreDir)

	codecs := compressor.NewRegistry(cfg.Backup.Level)
	codec, err := codecs.Get(cfg.Backup.Compression)
	if err != nil {
		return nil, err
	}

	records := openMetadata(cfg.Metadata, log)
	m := metrics.New()
	sched := scheduler.New(log.Cron())

	var notify usecase.Notifier
	if cfg.Notify.Telegram.Enabled && !o.noNotifier {
		tg, err := notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			notify = tg
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	catalog := usecase.NewCatalog(backups, codecs, log)
	service := NewService(ServiceDeps{
		Backups:  backups,
		Writer:   usecase.NewBackup(backups, codec, log, usecase.WithIndent(cfg.Backup.Indent)),
		Restore:  usecase.NewRestore(backups, restores, codecs, log),
		Deleter:  usecase.NewDelete(backups, log),
		Catalog:  catalog,
		Cron:     sched,
		Notifier: notify,
		Records:  records,
		Metrics:  m,
		Logger:   log,
	})

	cleanupUC := usecase.NewCleanup(
		catalog,
		recordedDelete{service},
		log,
		cfg.Backup.RetentionDays,
		cfg.Backup.KeepLast,
	)

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: sched,
		metrics:   m,
		records:   records,
		service:   service,
		cleanupUC: cleanupUC,
	}, nil
}

// openMetadata falls back to running without records when the store cannot
// be opened, e.g. because a server process holds the badger lock.
func openMetadata(cfg config.MetadataConfig, log *logger.Logger) domain.MetadataStore {
	store, err := metadata.Open(metadata.Options{
		Path:     cfg.Path,
		InMemory: cfg.InMemory,
		Logger:   log.Badger(),
	})
	if err != nil {
		log.Warnf("Metadata store unavailable, continuing without records: %v", err)
		return nil
	}
	return store
}

func (a *App) Service() *Service {
	return a.service
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Run registers the configured schedules and the retention cleanup, starts
// the scheduler and, when enabled, the HTTP API. It blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	for i, sc := range a.config.Schedules {
		src, err := source.New(ctx, sc.Source, a.config.Sources, source.Clients{})
		if err != nil {
			return fmt.Errorf("schedules[%d] %s: %w", i, sc.Name, err)
		}
		if _, err := a.service.RegisterSchedule(sc.Cron, src); err != nil {
			return fmt.Errorf("schedules[%d] %s: %w", i, sc.Name, err)
		}
	}

	if spec := a.config.Backup.CleanupSchedule; spec != "" &&
		(a.config.Backup.RetentionDays > 0 || a.config.Backup.KeepLast > 0) {
		a.logger.Infof("Scheduling cleanup: %s", spec)
		if _, err := a.scheduler.AddJob(spec, a.cleanupUC.Execute); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with %d schedule(s)", len(a.service.Schedules()))

	errCh := make(chan error, 1)
	if a.config.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		handler := httpapi.NewRouter(a.service, a.metrics.Registry(), a.logger,
			func(ctx context.Context, sc config.SourceConfig) (domain.Source, error) {
				if sc.Type == config.SourceFile {
					return nil, errors.New("file sources can only be set in the config file")
				}
				return source.New(ctx, sc, a.config.Sources, source.Clients{})
			})
		a.server = &http.Server{
			Addr:              a.config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Infof("HTTP API listening on %s", a.config.HTTP.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Cleanup runs the retention policy once.
func (a *App) Cleanup(ctx context.Context) error {
	return a.cleanupUC.Execute(ctx)
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Errorf("Failed to shut down HTTP server: %v", err)
		}
		cancel()
	}

	a.scheduler.Stop()

	if a.records != nil {
		if err := a.records.Close(); err != nil {
			a.logger.Errorf("Failed to close metadata store: %v", err)
		}
	}
	a.logger.Close()
}
