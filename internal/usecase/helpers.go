package usecase

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/semmidev/keepsake/internal/domain"
)

const (
	artifactPrefix  = "backup-"
	artifactExt     = ".json"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// sequence disambiguates names derived within the same millisecond.
var sequence atomic.Uint64

func artifactName(now time.Time) string {
	return fmt.Sprintf("%s%s-%06d%s",
		artifactPrefix, now.UTC().Format(timestampLayout), sequence.Add(1), artifactExt)
}

// ArtifactTimestamp extracts the creation time embedded in an artifact name.
// Names without a sequence suffix (backup-<ts>.json) are accepted too.
func ArtifactTimestamp(filename string) (time.Time, error) {
	if !strings.HasPrefix(filename, artifactPrefix) {
		return time.Time{}, fmt.Errorf("invalid filename format: missing %q prefix", artifactPrefix)
	}
	rest := strings.TrimPrefix(filename, artifactPrefix)
	if len(rest) < len(timestampLayout) {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}
	return time.Parse(timestampLayout, rest[:len(timestampLayout)])
}

// validateName rejects anything that is not a plain entry of a flat directory.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return domain.NewNotFoundError(name, fmt.Errorf("invalid artifact name"))
	}
	return nil
}

// DecodeJSON reads exactly one JSON document from r into v. Numbers are kept
// as json.Number so integers beyond 2^53 survive, and anything after the
// document other than whitespace is rejected.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the JSON document")
	}
	return nil
}
