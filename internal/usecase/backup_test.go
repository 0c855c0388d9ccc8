package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/semmidev/keepsake/internal/adapter/storage"
	"github.com/semmidev/keepsake/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBackup(t *testing.T) {
	Convey("Given a Backup writer on an empty directory", t, func() {
		root := t.TempDir()
		fx := newFixture(root)
		ctx := context.Background()

		Convey("When backing up {a:1}", func() {
			name, err := fx.writer.Perform(ctx, map[string]any{"a": 1})
			So(err, ShouldBeNil)

			Convey("The directory should hold exactly one compressed artifact", func() {
				files, err := fx.backups.List()
				So(err, ShouldBeNil)
				So(files, ShouldResemble, []string{name})

				matched, err := filepath.Match("backup-*.json.gz", name)
				So(err, ShouldBeNil)
				So(matched, ShouldBeTrue)
			})

			Convey("Restoring it should produce exactly {\"a\":1}", func() {
				restored, err := fx.restore.Perform(ctx, name)
				So(err, ShouldBeNil)
				So(restored, ShouldEqual, strings.TrimSuffix(name, ".gz"))

				content, err := os.ReadFile(fx.restores.Path(restored))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, `{"a":1}`)
			})

			Convey("The name should carry a parseable timestamp", func() {
				at, err := ArtifactTimestamp(name)
				So(err, ShouldBeNil)
				So(at, ShouldHappenWithin, time.Minute, time.Now())
			})
		})

		Convey("When an indent is configured", func() {
			fx := newFixture(root, WithIndent("  "))
			name, err := fx.writer.Perform(ctx, map[string]any{"b": 2, "a": 1})
			So(err, ShouldBeNil)

			restored, err := fx.restore.Perform(ctx, name)
			So(err, ShouldBeNil)
			content, _ := os.ReadFile(fx.restores.Path(restored))

			Convey("The content should be indented with sorted keys", func() {
				So(string(content), ShouldEqual, "{\n  \"a\": 1,\n  \"b\": 2\n}")
			})
		})

		Convey("When two backups are derived in the same millisecond", func() {
			frozen := time.Date(2026, 10, 19, 8, 15, 30, 123000000, time.UTC)
			fx := newFixture(root, WithClock(func() time.Time { return frozen }))

			first, err := fx.writer.Perform(ctx, map[string]any{"n": 1})
			So(err, ShouldBeNil)
			second, err := fx.writer.Perform(ctx, map[string]any{"n": 2})
			So(err, ShouldBeNil)

			Convey("They should get distinct names and both survive", func() {
				So(first, ShouldNotEqual, second)
				So(first, ShouldStartWith, "backup-2026-10-19T08:15:30.123Z-")
				So(second, ShouldStartWith, "backup-2026-10-19T08:15:30.123Z-")
				So(first < second, ShouldBeTrue)

				files, _ := fx.backups.List()
				So(files, ShouldResemble, []string{first, second})
			})
		})

		Convey("When many backups run concurrently on a frozen clock", func() {
			frozen := time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)
			fx := newFixture(root, WithClock(func() time.Time { return frozen }))

			const workers = 16
			var wg sync.WaitGroup
			names := make([]string, workers)
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					names[i], errs[i] = fx.writer.Perform(ctx, map[string]any{"worker": i})
				}(i)
			}
			wg.Wait()

			Convey("Every call should produce its own artifact", func() {
				seen := make(map[string]bool)
				for i := 0; i < workers; i++ {
					So(errs[i], ShouldBeNil)
					seen[names[i]] = true
				}
				So(len(seen), ShouldEqual, workers)

				files, _ := fx.backups.List()
				So(len(files), ShouldEqual, workers)
			})
		})

		Convey("When the next name is already taken by a compressed artifact", func() {
			frozen := time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC)
			fx := newFixture(root, WithClock(func() time.Time { return frozen }))
			So(fx.backups.Ensure(), ShouldBeNil)

			taken := artifactNameWithSeq(frozen, sequence.Load()+1) + ".gz"
			So(os.WriteFile(fx.backups.Path(taken), []byte("existing"), 0644), ShouldBeNil)

			name, err := fx.writer.Perform(ctx, map[string]any{"a": 1})

			Convey("It should skip it and leave the existing file untouched", func() {
				So(err, ShouldBeNil)
				So(name, ShouldNotEqual, taken)
				content, _ := os.ReadFile(fx.backups.Path(taken))
				So(string(content), ShouldEqual, "existing")
			})
		})

		Convey("When another writer claims the compressed name after the check", func() {
			dir := &racingDir{LocalStorage: fx.backups}
			gz, _ := fx.codecs.Get("gzip")
			writer := NewBackup(dir, gz, fx.logger)

			name, err := writer.Perform(ctx, map[string]any{"a": 1})

			Convey("It should retry under a fresh name and leave the other file alone", func() {
				So(err, ShouldBeNil)
				So(dir.claimed, ShouldHaveLength, 1)
				So(name, ShouldNotEqual, dir.claimed[0])
				So(name, ShouldEndWith, ".json.gz")

				content, _ := os.ReadFile(fx.backups.Path(dir.claimed[0]))
				So(string(content), ShouldEqual, "other writer")

				files, _ := fx.backups.List()
				So(files, ShouldHaveLength, 2)
				So(files, ShouldContain, name)
				So(files, ShouldContain, dir.claimed[0])
				So(fx.logger.contains("WARN", "claimed concurrently"), ShouldBeTrue)
			})

			Convey("The artifact should restore to the original data", func() {
				restored, rerr := fx.restore.Perform(ctx, name)
				So(rerr, ShouldBeNil)
				var got map[string]any
				So(fx.restore.ReadRestored(ctx, restored, &got), ShouldBeNil)
				So(got, ShouldResemble, map[string]any{"a": json.Number("1")})
			})
		})

		Convey("When the data cannot be serialized", func() {
			_, err := fx.writer.Perform(ctx, map[string]any{"ch": make(chan int)})

			Convey("It should fail with a WriteError and persist nothing", func() {
				So(errors.Is(err, domain.ErrWrite), ShouldBeTrue)
				files, _ := fx.backups.List()
				So(len(files), ShouldEqual, 0)
				So(fx.logger.contains("ERROR", "WRITE_ERROR"), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := fx.writer.Perform(cctx, map[string]any{"a": 1})

			Convey("It should fail with a WriteError and persist nothing", func() {
				So(domain.KindOf(err), ShouldEqual, domain.KindWrite)
				files, _ := fx.backups.List()
				So(len(files), ShouldEqual, 0)
			})
		})

		Convey("When compression fails", func() {
			writer := NewBackup(fx.backups, brokenCompressor{}, fx.logger)
			name, err := writer.Perform(ctx, map[string]any{"a": 1})

			Convey("It should fail with a CompressionError and keep the intermediate", func() {
				So(name, ShouldEqual, "")
				So(errors.Is(err, domain.ErrCompression), ShouldBeTrue)

				files, _ := fx.backups.List()
				So(len(files), ShouldEqual, 1)
				So(files[0], ShouldEndWith, ".json")

				content, _ := os.ReadFile(fx.backups.Path(files[0]))
				So(string(content), ShouldEqual, `{"a":1}`)
			})
		})

		Convey("When the intermediate cannot be removed", func() {
			dir := stickyDir{fx.backups}
			gz, _ := fx.codecs.Get("gzip")
			writer := NewBackup(dir, gz, fx.logger)
			name, err := writer.Perform(ctx, map[string]any{"a": 1})

			Convey("It should return the name with a CleanupError and leave both files", func() {
				So(errors.Is(err, domain.ErrCleanup), ShouldBeTrue)
				So(name, ShouldEndWith, ".json.gz")

				files, _ := fx.backups.List()
				So(files, ShouldResemble, []string{strings.TrimSuffix(name, ".gz"), name})
				So(fx.logger.contains("WARN", "left behind"), ShouldBeTrue)
			})

			Convey("The compressed artifact should still restore", func() {
				_, rerr := fx.restore.Perform(ctx, name)
				So(rerr, ShouldBeNil)
			})
		})

		Convey("When the backup root cannot be created", func() {
			blocker := filepath.Join(root, "blocker")
			So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)
			gz, _ := fx.codecs.Get("gzip")
			writer := NewBackup(storage.NewLocal(blocker), gz, fx.logger)

			_, err := writer.Perform(ctx, map[string]any{"a": 1})

			Convey("It should fail with a DirectoryError", func() {
				So(errors.Is(err, domain.ErrDirectory), ShouldBeTrue)
			})
		})
	})
}

func artifactNameWithSeq(now time.Time, seq uint64) string {
	return fmt.Sprintf("backup-%s-%06d.json", now.UTC().Format(timestampLayout), seq)
}
