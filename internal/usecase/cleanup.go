package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/semmidev/keepsake/internal/domain"
)

// Deleter removes one artifact by name.
type Deleter interface {
	Perform(ctx context.Context, name string) error
}

// Cleanup applies the retention policy to the backup directory: artifacts
// older than retentionDays go, and so does everything beyond the newest
// keepLast. A zero value disables the corresponding rule.
type Cleanup struct {
	catalog       *Catalog
	deleter       Deleter
	logger        Logger
	retentionDays int
	keepLast      int
	now           func() time.Time
}

func NewCleanup(
	catalog *Catalog,
	deleter Deleter,
	logger Logger,
	retentionDays int,
	keepLast int,
) *Cleanup {
	return &Cleanup{
		catalog:       catalog,
		deleter:       deleter,
		logger:        logger,
		retentionDays: retentionDays,
		keepLast:      keepLast,
		now:           time.Now,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	uc.logger.Infof("Starting cleanup, retention: %d days, keep last: %d", uc.retentionDays, uc.keepLast)

	artifacts, err := uc.catalog.Artifacts(ctx, artifactPrefix)
	if err != nil {
		return err
	}

	deleted := 0
	for _, filename := range uc.expired(artifacts) {
		uc.logger.Infof("Deleting old backup: %s", filename)
		if err := uc.deleter.Perform(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s: %v", filename, err)
			continue
		}
		deleted++
	}

	uc.logger.Infof("Cleanup completed, deleted %d old backup(s)", deleted)
	return nil
}

// expired ages artifacts by the time in their name, or by modification time
// when the name carries none.
func (uc *Cleanup) expired(artifacts []domain.Artifact) []string {
	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Name > b.Name
	})

	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)
	var old []string
	for i, a := range artifacts {
		beyondKeep := uc.keepLast > 0 && i >= uc.keepLast
		tooOld := uc.retentionDays > 0 && a.CreatedAt.Before(cutoff)
		if beyondKeep || tooOld {
			old = append(old, a.Name)
		}
	}
	return old
}
