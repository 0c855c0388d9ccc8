package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxPayloadSize = 64 << 20

// HTTP fetches a JSON document with a GET request on every tick.
type HTTP struct {
	url    string
	client *http.Client
}

func NewHTTP(url string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{url: url, client: client}
}

func (s *HTTP) Describe() string {
	return "http:" + s.url
}

func (s *HTTP) Produce(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", s.url, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", s.url, err)
	}
	if len(raw) > maxPayloadSize {
		return nil, fmt.Errorf("payload from %s exceeds %d bytes", s.url, maxPayloadSize)
	}
	return decode(raw)
}
