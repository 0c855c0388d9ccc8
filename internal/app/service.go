package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/keepsake/internal/domain"
	"github.com/semmidev/keepsake/internal/infrastructure/metrics"
	"github.com/semmidev/keepsake/internal/usecase"
)

// SourceSchedule marks records written by scheduled runs.
const SourceSchedule = "schedule"

// Service is the single entry point of the CLI, the HTTP API and the
// scheduler. It records every file operation in the metadata store: intent
// first, outcome second. A metadata failure is logged and never undoes a
// file operation that succeeded.
type Service struct {
	backups  domain.Directory
	writer   domain.Performer
	restore  *usecase.Restore
	deleter  *usecase.Delete
	catalog  *usecase.Catalog
	schedule *usecase.Schedule
	records  domain.MetadataStore
	metrics  *metrics.Metrics
	logger   usecase.Logger
	newID    func() string
}

type ServiceDeps struct {
	Backups  domain.Directory
	Writer   domain.Performer
	Restore  *usecase.Restore
	Deleter  *usecase.Delete
	Catalog  *usecase.Catalog
	Cron     usecase.Cron
	Notifier usecase.Notifier
	// Records may be nil, in which case nothing is recorded.
	Records domain.MetadataStore
	Metrics *metrics.Metrics
	Logger  usecase.Logger
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		backups: deps.Backups,
		writer:  deps.Writer,
		restore: deps.Restore,
		deleter: deps.Deleter,
		catalog: deps.Catalog,
		records: deps.Records,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		newID:   uuid.NewString,
	}
	if deps.Cron != nil {
		s.schedule = usecase.NewSchedule(deps.Cron, scheduledWriter{s}, deps.Logger, deps.Notifier)
	}
	return s
}

// Backup writes data as a new artifact. On a cleanup error the artifact
// exists and its name is returned together with the error.
func (s *Service) Backup(ctx context.Context, source string, data any) (id, name string, err error) {
	rec := domain.Record{
		BackupID:  s.newID(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Status:    domain.StatusPending,
	}
	s.putRecord(ctx, rec)

	start := time.Now()
	name, err = s.writer.Perform(ctx, data)
	s.metrics.ObserveOperation("backup", err, time.Since(start))

	switch {
	case err == nil || errors.Is(err, domain.ErrCleanup):
		rec.Status = domain.StatusCompleted
		rec.Artifact = name
		if err != nil {
			rec.Error = err.Error()
		}
		if info, statErr := s.backups.Stat(name); statErr == nil {
			s.metrics.ObserveArtifact(info.Size())
		}
	default:
		rec.Status = domain.StatusFailed
		rec.Error = err.Error()
	}
	s.putRecord(ctx, rec)

	return rec.BackupID, name, err
}

// Restore materializes the artifact and returns the restored file name with
// its parsed content.
func (s *Service) Restore(ctx context.Context, name string) (restored string, data any, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("restore", err, time.Since(start)) }()

	restored, err = s.restore.Perform(ctx, name)
	if err != nil {
		return "", nil, err
	}
	if err = s.restore.ReadRestored(ctx, restored, &data); err != nil {
		return "", nil, err
	}
	return restored, data, nil
}

// Delete removes the artifact and marks its record deleted. A failed delete
// puts the record back to its previous status.
func (s *Service) Delete(ctx context.Context, name string) error {
	rec, found := s.recordFor(ctx, name)
	previous := rec.Status
	if found {
		rec.Status = domain.StatusDeleting
		s.putRecord(ctx, rec)
	}

	start := time.Now()
	err := s.deleter.Perform(ctx, name)
	s.metrics.ObserveOperation("delete", err, time.Since(start))

	if found {
		if err != nil {
			rec.Status = previous
		} else {
			rec.Status = domain.StatusDeleted
		}
		s.putRecord(ctx, rec)
	}
	return err
}

func (s *Service) List(ctx context.Context, filter string) ([]string, error) {
	start := time.Now()
	names, err := s.catalog.List(ctx, filter)
	s.metrics.ObserveOperation("list", err, time.Since(start))
	return names, err
}

func (s *Service) Artifacts(ctx context.Context, filter string) ([]domain.Artifact, error) {
	start := time.Now()
	artifacts, err := s.catalog.Artifacts(ctx, filter)
	s.metrics.ObserveOperation("list", err, time.Since(start))
	return artifacts, err
}

func (s *Service) Record(ctx context.Context, id string) (domain.Record, error) {
	if s.records == nil {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return s.records.Get(ctx, id)
}

func (s *Service) Records(ctx context.Context) ([]domain.Record, error) {
	if s.records == nil {
		return nil, nil
	}
	return s.records.List(ctx)
}

// RegisterSchedule backs up src on every activation of expr.
func (s *Service) RegisterSchedule(expr string, src domain.Source) (int, error) {
	if s.schedule == nil {
		return 0, errors.New("scheduler is not configured")
	}
	id, err := s.schedule.Register(expr, observedSource{Source: src, metrics: s.metrics})
	if err == nil {
		s.metrics.SetSchedules(len(s.schedule.List()))
	}
	return id, err
}

func (s *Service) CancelSchedule(id int) error {
	if s.schedule == nil {
		return domain.NewError(domain.KindNotFound, fmt.Sprint(id), "schedule not registered", nil)
	}
	err := s.schedule.Cancel(id)
	s.metrics.SetSchedules(len(s.schedule.List()))
	return err
}

func (s *Service) Schedules() []usecase.Registration {
	if s.schedule == nil {
		return nil
	}
	return s.schedule.List()
}

func (s *Service) recordFor(ctx context.Context, name string) (domain.Record, bool) {
	if s.records == nil {
		return domain.Record{}, false
	}
	rec, err := s.records.FindByArtifact(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warnf("Failed to look up metadata for %s: %v", name, err)
		}
		return domain.Record{}, false
	}
	return rec, true
}

func (s *Service) putRecord(ctx context.Context, rec domain.Record) {
	if s.records == nil {
		return
	}
	if err := s.records.Put(ctx, rec); err != nil {
		s.logger.Warnf("Failed to record metadata %s (%s): %v", rec.BackupID, rec.Status, err)
	}
}

// scheduledWriter lets scheduled runs go through Service.Backup so they are
// recorded and measured like any other backup.
type scheduledWriter struct {
	s *Service
}

func (w scheduledWriter) Perform(ctx context.Context, data any) (string, error) {
	_, name, err := w.s.Backup(ctx, SourceSchedule, data)
	w.s.metrics.ObserveTick(err)
	return name, err
}

// observedSource counts ticks that fail before a backup is attempted.
type observedSource struct {
	domain.Source
	metrics *metrics.Metrics
}

func (o observedSource) Produce(ctx context.Context) (any, error) {
	data, err := o.Source.Produce(ctx)
	if err != nil {
		o.metrics.ObserveTick(err)
	}
	return data, err
}

// recordedDelete routes retention cleanup through Service.Delete.
type recordedDelete struct {
	s *Service
}

func (d recordedDelete) Perform(ctx context.Context, name string) error {
	return d.s.Delete(ctx, name)
}
