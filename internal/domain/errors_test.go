package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given a typed error", t, func() {
		err := NewWriteError("backup-1.json", "failed to write artifact", fs.ErrPermission)

		Convey("Error should render kind, name, message and cause", func() {
			So(err.Error(), ShouldEqual,
				"WRITE_ERROR [backup-1.json]: failed to write artifact (caused by: permission denied)")
		})

		Convey("It should match the sentinel of its kind only", func() {
			So(errors.Is(err, ErrWrite), ShouldBeTrue)
			So(errors.Is(err, ErrCompression), ShouldBeFalse)
			So(errors.Is(err, ErrNotFound), ShouldBeFalse)
		})

		Convey("It should unwrap to its cause", func() {
			So(errors.Is(err, fs.ErrPermission), ShouldBeTrue)
		})

		Convey("Wrapping should keep the kind visible", func() {
			wrapped := fmt.Errorf("scheduled run: %w", err)
			So(KindOf(wrapped), ShouldEqual, KindWrite)
			So(errors.Is(wrapped, ErrWrite), ShouldBeTrue)
		})

		Convey("Two distinct errors of the same kind should not be equal targets", func() {
			other := NewWriteError("backup-2.json", "failed to write artifact", nil)
			So(errors.Is(err, other), ShouldBeFalse)
		})
	})

	Convey("Given errors without a kind", t, func() {
		So(KindOf(errors.New("plain")), ShouldEqual, ErrorKind(""))
		So(KindOf(nil), ShouldEqual, ErrorKind(""))
	})

	Convey("Constructors should set their kinds", t, func() {
		So(NewDirectoryError("/x", nil).Kind, ShouldEqual, KindDirectory)
		So(NewCompressionError("a", "m", nil).Kind, ShouldEqual, KindCompression)
		So(NewCleanupError("a", nil).Kind, ShouldEqual, KindCleanup)
		So(NewNotFoundError("a", nil).Kind, ShouldEqual, KindNotFound)
		So(NewCorruptArtifactError("a", "m", nil).Kind, ShouldEqual, KindCorruptArtifact)
		So(NewInvalidScheduleError("* *", nil).Kind, ShouldEqual, KindInvalidSchedule)
		So(NewNotFoundError("a", nil).Error(), ShouldEqual, "NOT_FOUND_ERROR [a]: backup not found")
	})
}
