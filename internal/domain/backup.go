package domain

import (
	"context"
	"time"
)

type Artifact struct {
	Name       string
	Path       string
	Size       int64
	Compressed bool
	CreatedAt  time.Time
}

// Performer creates one backup artifact from data and returns its name.
type Performer interface {
	Perform(ctx context.Context, data any) (string, error)
}

// Source produces the payload of a scheduled backup. Produce is called on
// every tick, so sources backed by files or remote objects are re-read each
// time.
type Source interface {
	Describe() string
	Produce(ctx context.Context) (any, error)
}
