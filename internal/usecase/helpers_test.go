package usecase

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeJSON(t *testing.T) {
	Convey("DecodeJSON should read exactly one document", t, func() {
		Convey("Numbers should keep their literal form", func() {
			var v any
			So(DecodeJSON(strings.NewReader(`{"id": 9007199254740993, "f": 0.1}`), &v), ShouldBeNil)
			So(v, ShouldResemble, map[string]any{
				"id": json.Number("9007199254740993"),
				"f":  json.Number("0.1"),
			})
		})

		Convey("Trailing whitespace should be accepted", func() {
			var v any
			So(DecodeJSON(strings.NewReader("[1]\n\t \n"), &v), ShouldBeNil)
			So(v, ShouldResemble, []any{json.Number("1")})
		})

		Convey("A second document should be rejected", func() {
			var v any
			err := DecodeJSON(strings.NewReader(`{"a":1}{"b":2}`), &v)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unexpected data")
		})

		Convey("Trailing garbage should be rejected", func() {
			var v any
			So(DecodeJSON(strings.NewReader(`{"a":1} trailing junk`), &v), ShouldNotBeNil)
			So(DecodeJSON(strings.NewReader(`1 2`), &v), ShouldNotBeNil)
		})

		Convey("Empty or broken input should be rejected", func() {
			var v any
			So(DecodeJSON(strings.NewReader(""), &v), ShouldNotBeNil)
			So(DecodeJSON(strings.NewReader(`{"a":`), &v), ShouldNotBeNil)
		})
	})
}
