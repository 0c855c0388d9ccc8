package compressor

import (
	"bytes"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func compress(t *testing.T, c interface {
	NewWriter(io.Writer) (io.WriteCloser, error)
}, input []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := w.Write(input); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestCompressors(t *testing.T) {
	Convey("Given the compressor registry", t, func() {
		registry := NewRegistry(6)
		inputContent := bytes.Repeat([]byte(`{"a":1,"b":"This is a test content for compression"}`), 64)

		for _, name := range []string{Gzip, Zstd, LZ4} {
			name := name
			Convey("When round-tripping through "+name, func() {
				c, err := registry.Get(name)
				So(err, ShouldBeNil)

				compressed := compress(t, c, inputContent)
				So(len(compressed), ShouldBeLessThan, len(inputContent))

				r, err := c.NewReader(bytes.NewReader(compressed))
				So(err, ShouldBeNil)
				defer r.Close()

				out, err := io.ReadAll(r)
				Convey("It should reproduce the input", func() {
					So(err, ShouldBeNil)
					So(out, ShouldResemble, inputContent)
				})
			})

			Convey("When the "+name+" stream is truncated", func() {
				c, _ := registry.Get(name)
				compressed := compress(t, c, inputContent)
				truncated := compressed[:len(compressed)/2]

				var readErr error
				r, err := c.NewReader(bytes.NewReader(truncated))
				if err != nil {
					readErr = err
				} else {
					_, readErr = io.ReadAll(r)
					r.Close()
				}

				Convey("It should fail to decode", func() {
					So(readErr, ShouldNotBeNil)
				})
			})
		}

		Convey("When the source is not a gzip stream", func() {
			c, _ := registry.Get(Gzip)
			_, err := c.NewReader(bytes.NewReader([]byte("not a gzip file")))

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create gzip reader")
			})
		})

		Convey("Get", func() {
			Convey("It should default to gzip", func() {
				c, err := registry.Get("")
				So(err, ShouldBeNil)
				So(c.Extension(), ShouldEqual, ".gz")
			})

			Convey("It should reject unknown algorithms", func() {
				_, err := registry.Get("brotli")
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unsupported compression algorithm")
			})
		})

		Convey("ForArtifact", func() {
			c, ok := registry.ForArtifact("backup-2026-10-19T08:15:30.123Z-000001.json.zst")
			So(ok, ShouldBeTrue)
			So(c.Name(), ShouldEqual, Zstd)

			_, ok = registry.ForArtifact("backup-2026-10-19T08:15:30.123Z-000001.json")
			So(ok, ShouldBeFalse)

			c, ok = registry.ForArtifact("backup-2026-10-19T08:15:30.123Z-000001.json.lz4")
			So(ok, ShouldBeTrue)
			So(c.Name(), ShouldEqual, LZ4)
		})
	})
}
