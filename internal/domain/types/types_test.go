package types_test

import (
	"image"
	"image/color"
	"testing"
	"time"

	types "github.com/okian/episodecam/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFrame(t *testing.T) {
	Convey("Given a source image with an offset origin", t, func() {
		src := image.NewRGBA(image.Rect(10, 20, 14, 23))
		src.Set(10, 20, color.RGBA{R: 200, A: 255})
		ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		Convey("When a frame is built from it", func() {
			f := types.NewFrame(src, 3, ts)

			Convey("Then pixels are re-anchored at the origin", func() {
				So(f.Empty(), ShouldBeFalse)
				So(f.Width(), ShouldEqual, 4)
				So(f.Height(), ShouldEqual, 3)
				So(f.Image.Bounds().Min, ShouldResemble, image.Point{})
				So(f.Image.RGBAAt(0, 0).R, ShouldEqual, 200)
				So(f.Seq, ShouldEqual, 3)
				So(f.Timestamp, ShouldEqual, ts)
			})

			Convey("And a clone does not share pixels", func() {
				c := f.Clone()
				c.Image.Pix[0] = 1
				So(f.Image.Pix[0], ShouldEqual, 200)
			})
		})

		Convey("When a frame has no image", func() {
			f := types.NewFrame(nil, 1, ts)

			Convey("Then it is empty with zero dimensions", func() {
				So(f.Empty(), ShouldBeTrue)
				So(f.Width(), ShouldEqual, 0)
				So(f.Height(), ShouldEqual, 0)
				So(f.Clone().Image, ShouldBeNil)
			})
		})
	})
}
