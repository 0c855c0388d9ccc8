package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/keepsake/internal/adapter/compressor"
	"github.com/semmidev/keepsake/internal/adapter/storage"
	"github.com/semmidev/keepsake/internal/domain"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Infof(template string, args ...interface{}) {
	l.add("INFO", template, args...)
}
func (l *recordingLogger) Warnf(template string, args ...interface{}) {
	l.add("WARN", template, args...)
}
func (l *recordingLogger) Errorf(template string, args ...interface{}) {
	l.add("ERROR", template, args...)
}

func (l *recordingLogger) contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// fixedSource yields the same value on every tick.
type fixedSource struct {
	value any
}

func fixed(value any) fixedSource { return fixedSource{value: value} }

func (s fixedSource) Describe() string                         { return "inline" }
func (s fixedSource) Produce(ctx context.Context) (any, error) { return s.value, nil }

// stickyDir refuses to remove intermediates, like a directory whose entries
// cannot be unlinked.
type stickyDir struct {
	*storage.LocalStorage
}

func (d stickyDir) Remove(name string) error {
	if strings.HasSuffix(name, artifactExt) {
		return errors.New("operation not permitted")
	}
	return d.LocalStorage.Remove(name)
}

// racingDir lets another writer claim the first compressed name right after
// it was checked and before it is created.
type racingDir struct {
	*storage.LocalStorage
	claimed []string
}

func (d *racingDir) Create(name string) (*os.File, error) {
	if strings.HasSuffix(name, ".gz") && len(d.claimed) == 0 {
		if err := os.WriteFile(d.Path(name), []byte("other writer"), 0644); err != nil {
			return nil, err
		}
		d.claimed = append(d.claimed, name)
	}
	return d.LocalStorage.Create(name)
}

// brokenCompressor fails after part of the stream has been written.
type brokenCompressor struct{}

func (brokenCompressor) Name() string      { return "broken" }
func (brokenCompressor) Extension() string { return ".gz" }

func (brokenCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return &brokenWriter{w: w}, nil
}

func (brokenCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type brokenWriter struct {
	w io.Writer
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	_, _ = b.w.Write(p[:len(p)/2])
	return 0, errors.New("disk full")
}

func (b *brokenWriter) Close() error { return nil }

// manualCron records registrations and fires them on demand.
type manualCron struct {
	mu   sync.Mutex
	next int
	jobs map[int]func(context.Context) error
}

func newManualCron() *manualCron {
	return &manualCron{jobs: make(map[int]func(context.Context) error)}
}

func (c *manualCron) Validate(spec string) error {
	if len(strings.Fields(spec)) != 5 && !strings.HasPrefix(spec, "@") {
		return fmt.Errorf("expected exactly 5 fields, found %d: %s", len(strings.Fields(spec)), spec)
	}
	return nil
}

func (c *manualCron) AddJob(spec string, job func(context.Context) error) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.jobs[c.next] = job
	return c.next, nil
}

func (c *manualCron) Remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, id)
}

func (c *manualCron) Next(id int) (time.Time, time.Time) {
	return time.Time{}, time.Time{}
}

func (c *manualCron) fire(id int) (bool, error) {
	c.mu.Lock()
	job, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, job(context.Background())
}

type countingPerformer struct {
	mu    sync.Mutex
	calls []any
	errs  []error
}

func (p *countingPerformer) Perform(ctx context.Context, data any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, data)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	if err != nil && !errors.Is(err, domain.ErrCleanup) {
		return "", err
	}
	return fmt.Sprintf("backup-%d.json.gz", len(p.calls)), err
}

func (p *countingPerformer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

type fixture struct {
	backups  *storage.LocalStorage
	restores *storage.LocalStorage
	codecs   *compressor.Registry
	logger   *recordingLogger
	writer   *Backup
	restore  *Restore
	catalog  *Catalog
	deleter  *Delete
}

func newFixture(root string, opts ...BackupOption) *fixture {
	f := &fixture{
		backups:  storage.NewLocal(root + "/backups"),
		restores: storage.NewLocal(root + "/restored"),
		codecs:   compressor.NewRegistry(6),
		logger:   &recordingLogger{},
	}
	gz, _ := f.codecs.Get(compressor.Gzip)
	f.writer = NewBackup(f.backups, gz, f.logger, opts...)
	f.restore = NewRestore(f.backups, f.restores, f.codecs, f.logger)
	f.catalog = NewCatalog(f.backups, f.codecs, f.logger)
	f.deleter = NewDelete(f.backups, f.logger)
	return f
}
