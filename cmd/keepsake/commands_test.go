package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`app:
  log_level: error
http:
  enabled: false
backup:
  dir: %s
  restore_dir: %s
metadata:
  path: %s
`, filepath.Join(dir, "backups"), filepath.Join(dir, "restored"), filepath.Join(dir, "metadata"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(configPath, stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestCommands(t *testing.T) {
	Convey("Given a config pointing at a temporary directory", t, func() {
		cfg := writeConfig(t)

		Convey("backup from stdin should print the artifact name", func() {
			name, err := execute(cfg, `{"a":1}`, "backup")
			So(err, ShouldBeNil)
			So(name, ShouldStartWith, "backup-")
			So(name, ShouldEndWith, ".json.gz")

			Convey("list should show it", func() {
				out, err := execute(cfg, "", "list")
				So(err, ShouldBeNil)
				So(out, ShouldEqual, name)

				out, err = execute(cfg, "", "list", "no-such-filter")
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)

				out, err = execute(cfg, "", "list", "--long")
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "NAME")
				So(out, ShouldContainSubstring, name)
			})

			Convey("restore --print should print the document", func() {
				out, err := execute(cfg, "", "restore", "--print", name)
				So(err, ShouldBeNil)

				var data map[string]any
				So(json.Unmarshal([]byte(out), &data), ShouldBeNil)
				So(data, ShouldResemble, map[string]any{"a": float64(1)})

				out, err = execute(cfg, "", "restore", name)
				So(err, ShouldBeNil)
				So(out, ShouldEqual, strings.TrimSuffix(name, ".gz"))
			})

			Convey("delete should remove it once", func() {
				_, err := execute(cfg, "", "delete", name)
				So(err, ShouldBeNil)

				_, err = execute(cfg, "", "delete", name)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "NOT_FOUND_ERROR")
			})
		})

		Convey("backup from a file should work too", func() {
			payload := filepath.Join(t.TempDir(), "payload.json")
			So(os.WriteFile(payload, []byte(`[1,2,3]`), 0600), ShouldBeNil)

			name, err := execute(cfg, "", "backup", payload)
			So(err, ShouldBeNil)
			So(name, ShouldStartWith, "backup-")
		})

		Convey("backup should reject empty or invalid input", func() {
			_, err := execute(cfg, "", "backup")
			So(err, ShouldNotBeNil)

			_, err = execute(cfg, "{oops", "backup")
			So(err, ShouldNotBeNil)

			_, err = execute(cfg, `{"a":1} {"b":2}`, "backup")
			So(err, ShouldNotBeNil)

			out, err := execute(cfg, "", "list")
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})

		Convey("restore of an unknown artifact should fail", func() {
			_, err := execute(cfg, "", "restore", "backup-missing.json.gz")
			So(err, ShouldNotBeNil)
		})

		Convey("cleanup should succeed on an empty directory", func() {
			_, err := execute(cfg, "", "cleanup")
			So(err, ShouldBeNil)
		})
	})
}

func TestReadPayload(t *testing.T) {
	Convey("readPayload should keep numbers as written", t, func() {
		data, err := readPayload(strings.NewReader(`{"big": 12345678901234567890}`))
		So(err, ShouldBeNil)
		So(data.(map[string]any)["big"], ShouldEqual, json.Number("12345678901234567890"))

		_, err = readPayload(strings.NewReader("   \n"))
		So(err, ShouldNotBeNil)

		_, err = readPayload(strings.NewReader(`{"a":1}{"b":2} trailing junk`))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "not valid JSON")

		data, err = readPayload(strings.NewReader("[1, 2]\n\n"))
		So(err, ShouldBeNil)
		So(data, ShouldResemble, []any{json.Number("1"), json.Number("2")})
	})
}
