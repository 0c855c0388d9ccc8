package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/semmidev/keepsake/internal/domain"
)

// Cron is the recurring trigger the schedule registers with.
type Cron interface {
	Validate(spec string) error
	AddJob(spec string, job func(context.Context) error) (int, error)
	Remove(id int)
	Next(id int) (next, prev time.Time)
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type Registration struct {
	ID         int       `json:"id"`
	Expression string    `json:"cron"`
	Source     string    `json:"source"`
	Registered time.Time `json:"registered"`
	Next       time.Time `json:"next,omitempty"`
	Prev       time.Time `json:"prev,omitempty"`
}

type Schedule struct {
	cron     Cron
	writer   domain.Performer
	logger   Logger
	notifier Notifier

	mu      sync.Mutex
	entries map[int]Registration
}

func NewSchedule(cron Cron, writer domain.Performer, logger Logger, notifier Notifier) *Schedule {
	return &Schedule{
		cron:     cron,
		writer:   writer,
		logger:   logger,
		notifier: notifier,
		entries:  make(map[int]Registration),
	}
}

// Register validates expr and registers a recurring backup of src. An invalid
// expression registers nothing.
func (uc *Schedule) Register(expr string, src domain.Source) (int, error) {
	if err := uc.cron.Validate(expr); err != nil {
		serr := domain.NewInvalidScheduleError(expr, err)
		uc.logger.Errorf("Schedule rejected: %v", serr)
		return 0, serr
	}

	id, err := uc.cron.AddJob(expr, func(ctx context.Context) error {
		return uc.tick(ctx, expr, src)
	})
	if err != nil {
		serr := domain.NewInvalidScheduleError(expr, err)
		uc.logger.Errorf("Schedule rejected: %v", serr)
		return 0, serr
	}

	uc.mu.Lock()
	uc.entries[id] = Registration{
		ID:         id,
		Expression: expr,
		Source:     src.Describe(),
		Registered: time.Now(),
	}
	uc.mu.Unlock()

	uc.logger.Infof("Scheduled backup #%d: %s (source: %s)", id, expr, src.Describe())
	return id, nil
}

func (uc *Schedule) Cancel(id int) error {
	uc.mu.Lock()
	_, ok := uc.entries[id]
	delete(uc.entries, id)
	uc.mu.Unlock()

	if !ok {
		return domain.NewError(domain.KindNotFound, strconv.Itoa(id), "schedule not registered", nil)
	}
	uc.cron.Remove(id)
	uc.logger.Infof("Cancelled scheduled backup #%d", id)
	return nil
}

func (uc *Schedule) List() []Registration {
	uc.mu.Lock()
	regs := make([]Registration, 0, len(uc.entries))
	for _, reg := range uc.entries {
		regs = append(regs, reg)
	}
	uc.mu.Unlock()

	for i := range regs {
		regs[i].Next, regs[i].Prev = uc.cron.Next(regs[i].ID)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs
}

// tick runs one scheduled backup. Its error is reported and returned to the
// trigger, which keeps the schedule registered regardless.
func (uc *Schedule) tick(ctx context.Context, expr string, src domain.Source) error {
	uc.logger.Infof("=== Triggered scheduled backup (%s, source: %s) ===", expr, src.Describe())

	data, err := src.Produce(ctx)
	if err != nil {
		err = fmt.Errorf("produce payload from %s: %w", src.Describe(), err)
		uc.logger.Errorf("Scheduled backup failed: %v", err)
		uc.notify(ctx, fmt.Sprintf("❌ Scheduled backup failed\n\n%v", err))
		return err
	}

	name, err := uc.writer.Perform(ctx, data)
	switch {
	case err == nil:
		uc.logger.Infof("Scheduled backup created: %s", name)
		uc.notify(ctx, fmt.Sprintf("✅ Backup Created\n\n📁 File: %s", name))
	case errors.Is(err, domain.ErrCleanup):
		uc.logger.Warnf("Scheduled backup created with leftovers: %s: %v", name, err)
		uc.notify(ctx, fmt.Sprintf("⚠️ Backup Created with leftovers\n\n📁 File: %s\n%v", name, err))
	default:
		uc.logger.Errorf("Scheduled backup failed: %v", err)
		uc.notify(ctx, fmt.Sprintf("❌ Scheduled backup failed\n\n%v", err))
	}
	return err
}

func (uc *Schedule) notify(ctx context.Context, message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, message); err != nil {
		uc.logger.Warnf("Failed to send notification: %v", err)
	}
}
