package domain

import (
	"context"
	"time"
)

type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusCompleted RecordStatus = "completed"
	StatusFailed    RecordStatus = "failed"
	StatusDeleting  RecordStatus = "deleting"
	StatusDeleted   RecordStatus = "deleted"
)

// Record is the metadata kept about a backup next to the physical artifact.
type Record struct {
	BackupID  string       `json:"backupId"`
	Timestamp time.Time    `json:"timestamp"`
	Source    string       `json:"source"`
	Status    RecordStatus `json:"status"`
	Artifact  string       `json:"artifact,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type MetadataStore interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, backupID string) (Record, error)
	FindByArtifact(ctx context.Context, artifact string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Close() error
}
