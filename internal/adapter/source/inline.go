package source

import "context"

// Inline yields the value written in the config on every tick.
type Inline struct {
	value any
}

func NewInline(value any) *Inline {
	return &Inline{value: value}
}

func (s *Inline) Describe() string {
	return "inline"
}

func (s *Inline) Produce(ctx context.Context) (any, error) {
	return s.value, nil
}
