package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/semmidev/keepsake/internal/domain"
)

// CodecResolver picks the decompressor for an artifact by its suffix.
type CodecResolver interface {
	ForArtifact(filename string) (domain.Compressor, bool)
}

type Restore struct {
	backups  domain.Directory
	restores domain.Directory
	codecs   CodecResolver
	logger   Logger
}

func NewRestore(backups, restores domain.Directory, codecs CodecResolver, logger Logger) *Restore {
	return &Restore{
		backups:  backups,
		restores: restores,
		codecs:   codecs,
		logger:   logger,
	}
}

// Perform decompresses the named artifact into the restore directory and
// returns the restored file name.
func (uc *Restore) Perform(ctx context.Context, name string) (string, error) {
	start := time.Now()

	if err := uc.checkExists(name); err != nil {
		return "", uc.fail(err)
	}

	codec, ok := uc.codecs.ForArtifact(name)
	if !ok {
		return "", uc.fail(domain.NewCorruptArtifactError(name, "unrecognized compression suffix", nil))
	}
	restored := strings.TrimSuffix(name, codec.Extension())

	if err := ctx.Err(); err != nil {
		return "", uc.fail(domain.NewWriteError(restored, "restore cancelled", err))
	}
	if err := uc.restores.Ensure(); err != nil {
		return "", uc.fail(err)
	}

	in, err := uc.backups.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", uc.fail(domain.NewNotFoundError(name, err))
		}
		return "", uc.fail(asKind(err, func(cause error) error {
			return domain.NewCorruptArtifactError(name, "failed to open artifact", cause)
		}))
	}
	defer in.Close()

	partial := fmt.Sprintf(".%s.partial-%06d", restored, sequence.Add(1))
	if err := uc.decompress(codec, name, in, partial); err != nil {
		_ = uc.restores.Remove(partial)
		return "", uc.fail(err)
	}

	if err := uc.restores.Rename(partial, restored); err != nil {
		_ = uc.restores.Remove(partial)
		return "", uc.fail(domain.NewWriteError(restored, "failed to finalize restored file", err))
	}

	uc.logger.Infof("[%s] Restored to %s in %s", name, uc.restores.Path(restored), time.Since(start).Round(time.Millisecond))
	return restored, nil
}

// ReadRestored parses a previously restored file into v, keeping numbers
// exactly as they were backed up.
func (uc *Restore) ReadRestored(ctx context.Context, restored string, v any) error {
	if err := validateName(restored); err != nil {
		return uc.fail(err)
	}
	f, err := uc.restores.Open(restored)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return uc.fail(domain.NewNotFoundError(restored, err))
		}
		return uc.fail(asKind(err, func(cause error) error {
			return domain.NewCorruptArtifactError(restored, "failed to open restored file", cause)
		}))
	}
	defer f.Close()

	if err := DecodeJSON(f, v); err != nil {
		return uc.fail(domain.NewCorruptArtifactError(restored, "restored content is not valid JSON", err))
	}
	return nil
}

func (uc *Restore) checkExists(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	info, err := uc.backups.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError(name, nil)
		}
		return asKind(err, func(cause error) error {
			return domain.NewNotFoundError(name, cause)
		})
	}
	if info.IsDir() {
		return domain.NewNotFoundError(name, fmt.Errorf("%s is a directory", name))
	}
	return nil
}

func (uc *Restore) decompress(codec domain.Compressor, name string, in io.Reader, partial string) error {
	out, err := uc.restores.Create(partial)
	if err != nil {
		return asKind(err, func(cause error) error {
			return domain.NewWriteError(partial, "failed to create restore target", cause)
		})
	}

	r, err := codec.NewReader(in)
	if err != nil {
		out.Close()
		return domain.NewCorruptArtifactError(name, "failed to read compressed stream", err)
	}
	defer r.Close()

	tw := &trackingWriter{w: out}
	if _, err := io.Copy(tw, r); err != nil {
		out.Close()
		if tw.err != nil {
			return domain.NewWriteError(partial, "failed to write restored content", tw.err)
		}
		return domain.NewCorruptArtifactError(name, "failed to decompress artifact", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return domain.NewWriteError(partial, "failed to sync restored content", err)
	}
	if err := out.Close(); err != nil {
		return domain.NewWriteError(partial, "failed to close restored content", err)
	}
	return nil
}

// trackingWriter remembers write-side failures so that io.Copy errors can be
// attributed to the reader or the writer.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

func (uc *Restore) fail(err error) error {
	uc.logger.Errorf("Restore failed: %v", err)
	return err
}
