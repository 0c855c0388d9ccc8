package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field expressions and descriptors such as @daily.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Scheduler struct {
	cron *cron.Cron
}

// New builds a scheduler whose jobs are isolated from each other: a panicking
// job is recovered and logged, and its entry stays registered.
func New(logger cron.Logger) *Scheduler {
	if logger == nil {
		logger = cron.DiscardLogger
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

// ValidateSpec parses spec without registering anything.
func ValidateSpec(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

func (s *Scheduler) Validate(spec string) error {
	return ValidateSpec(spec)
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) (int, error) {
	id, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		_ = job(ctx)
	})
	return int(id), err
}

func (s *Scheduler) Remove(id int) {
	s.cron.Remove(cron.EntryID(id))
}

// Next returns the next and previous activation of an entry. Both are zero
// for unknown ids or before the scheduler has started.
func (s *Scheduler) Next(id int) (next, prev time.Time) {
	entry := s.cron.Entry(cron.EntryID(id))
	return entry.Next, entry.Prev
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
