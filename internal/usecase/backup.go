package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/semmidev/keepsake/internal/domain"
)

const maxNameAttempts = 16

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Backup owns the serialize, persist, compress, cleanup sequence of one
// artifact.
type Backup struct {
	dir        domain.Directory
	compressor domain.Compressor
	logger     Logger
	indent     string
	now        func() time.Time
}

var _ domain.Performer = (*Backup)(nil)

type BackupOption func(*Backup)

// WithIndent sets the JSON indentation. Empty means compact output.
func WithIndent(indent string) BackupOption {
	return func(b *Backup) { b.indent = indent }
}

func WithClock(now func() time.Time) BackupOption {
	return func(b *Backup) { b.now = now }
}

func NewBackup(
	dir domain.Directory,
	compressor domain.Compressor,
	logger Logger,
	opts ...BackupOption,
) *Backup {
	b := &Backup{
		dir:        dir,
		compressor: compressor,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Perform writes data as a compressed artifact and returns its name. On a
// CleanupError the compressed name is returned alongside the error.
func (uc *Backup) Perform(ctx context.Context, data any) (string, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return "", uc.fail(domain.NewWriteError("", "backup cancelled", err))
	}
	if err := uc.dir.Ensure(); err != nil {
		return "", uc.fail(err)
	}

	payload, err := uc.serialize(data)
	if err != nil {
		return "", uc.fail(domain.NewWriteError("", "failed to serialize data", err))
	}

	name, compressedName, size, err := uc.store(ctx, payload)
	if err != nil {
		return "", uc.fail(err)
	}
	uc.logger.Infof("[%s] Compression complete, size: %d bytes (%.1f%% of original)",
		compressedName, size, ratio(size, int64(len(payload))))

	if err := uc.dir.Remove(name); err != nil {
		cleanupErr := domain.NewCleanupError(name, err)
		uc.logger.Warnf("[%s] Backup created but intermediate %s was left behind: %v", compressedName, name, err)
		return compressedName, cleanupErr
	}

	uc.logger.Infof("[%s] Backup completed in %s", compressedName, time.Since(start).Round(time.Millisecond))
	return compressedName, nil
}

// store persists payload and compresses it. When another writer claims the
// compressed name between the check in persist and the exclusive create, the
// intermediate is dropped and a fresh name is derived.
func (uc *Backup) store(ctx context.Context, payload []byte) (name, compressedName string, size int64, err error) {
	for attempt := 1; ; attempt++ {
		name, err = uc.persist(payload)
		if err != nil {
			return "", "", 0, err
		}
		uc.logger.Infof("[%s] Backup saved, size: %d bytes", name, len(payload))

		if err := ctx.Err(); err != nil {
			return "", "", 0, domain.NewCompressionError(name, "backup cancelled before compression, uncompressed artifact kept", err)
		}

		compressedName = name + uc.compressor.Extension()
		size, err = uc.compress(name, compressedName)
		if err == nil {
			return name, compressedName, size, nil
		}
		if !errors.Is(err, fs.ErrExist) || attempt >= maxNameAttempts {
			return "", "", 0, err
		}

		uc.logger.Warnf("[%s] Compressed name was claimed concurrently, retrying under a new name", compressedName)
		if rmErr := uc.dir.Remove(name); rmErr != nil {
			return "", "", 0, domain.NewCompressionError(name, "compressed name taken and intermediate could not be removed", rmErr)
		}
	}
}

func (uc *Backup) fail(err error) error {
	uc.logger.Errorf("Backup failed: %v", err)
	return err
}

func (uc *Backup) serialize(data any) ([]byte, error) {
	if uc.indent == "" {
		return json.Marshal(data)
	}
	return json.MarshalIndent(data, "", uc.indent)
}

// persist writes payload under a fresh name. A name that is already taken,
// either as intermediate or as compressed artifact, is skipped.
func (uc *Backup) persist(payload []byte) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := artifactName(uc.now())

		taken, err := uc.dir.Exists(name + uc.compressor.Extension())
		if err != nil {
			return "", asKind(err, func(cause error) error {
				return domain.NewWriteError(name, "failed to check artifact name", cause)
			})
		}
		if taken {
			continue
		}

		f, err := uc.dir.Create(name)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", asKind(err, func(cause error) error {
				return domain.NewWriteError(name, "failed to create artifact", cause)
			})
		}

		if err := writeDurable(f, payload); err != nil {
			_ = uc.dir.Remove(name)
			return "", domain.NewWriteError(name, "failed to write artifact", err)
		}
		return name, nil
	}

	return "", domain.NewWriteError("", "failed to derive a unique artifact name",
		fmt.Errorf("%d attempts exhausted", maxNameAttempts))
}

func (uc *Backup) compress(src, dst string) (int64, error) {
	in, err := uc.dir.Open(src)
	if err != nil {
		return 0, domain.NewCompressionError(src, "failed to open uncompressed artifact", err)
	}
	defer in.Close()

	out, err := uc.dir.Create(dst)
	if err != nil {
		return 0, domain.NewCompressionError(dst, "failed to create compressed artifact", err)
	}

	size, err := uc.stream(in, out)
	if err != nil {
		_ = uc.dir.Remove(dst)
		return 0, domain.NewCompressionError(dst, "failed to compress artifact", err)
	}
	return size, nil
}

// stream closes out in every case.
func (uc *Backup) stream(in io.Reader, out *os.File) (int64, error) {
	w, err := uc.compressor.NewWriter(out)
	if err != nil {
		out.Close()
		return 0, err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		out.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	info, err := out.Stat()
	if err != nil {
		out.Close()
		return 0, err
	}
	return info.Size(), out.Close()
}

func writeDurable(f *os.File, payload []byte) error {
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// asKind keeps errors that already carry a kind and wraps the rest.
func asKind(err error, wrap func(error) error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return wrap(err)
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 100
	}
	return float64(part) / float64(whole) * 100
}
