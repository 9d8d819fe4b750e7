package reinforcement

import (
	"errors"
	"testing"

	"flappyq/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestShape(t *testing.T) {
	Convey("When a pipe is passed", t, func() {
		reward, prev, err := Shape(2, 3, false, "40_10", 17)
		So(err, ShouldBeNil)
		So(reward, ShouldEqual, 10)
		So(prev, ShouldEqual, 3)
	})

	Convey("When the score is unchanged", t, func() {
		reward, prev, err := Shape(3, 3, false, "40_10", 17)
		So(err, ShouldBeNil)
		So(reward, ShouldEqual, 0)
		So(prev, ShouldEqual, 3)
	})

	Convey("When the bird dies far from the gap", t, func() {
		Convey("After several steps, the penalty scales with distance", func() {
			reward, _, err := Shape(0, 0, true, "90_150", 5)
			So(err, ShouldBeNil)
			So(reward, ShouldEqual, -1500)
		})

		Convey("Within the first steps, an extra penalty applies", func() {
			reward, _, err := Shape(0, 0, true, "90_150", 2)
			So(err, ShouldBeNil)
			So(reward, ShouldEqual, -2500)
		})

		Convey("Exactly at the threshold, the flat penalty applies", func() {
			reward, _, _ := Shape(0, 0, true, "90_120", 1)
			So(reward, ShouldEqual, -500)
		})
	})

	Convey("When the bird dies near the gap", t, func() {
		for _, trajLen := range []int{0, 2, 5, 500} {
			reward, _, err := Shape(0, 0, true, "90_80", trajLen)
			So(err, ShouldBeNil)
			So(reward, ShouldEqual, -500)
		}
		reward, _, _ := Shape(0, 0, true, "90_-120", 1)
		So(reward, ShouldEqual, -500)
	})

	Convey("When the bird dies far above the gap", t, func() {
		Convey("It is penalized by the same magnitude as below", func() {
			above, _, err := Shape(0, 0, true, "200_-160", 5)
			So(err, ShouldBeNil)
			below, _, _ := Shape(0, 0, true, "200_160", 5)
			So(above, ShouldEqual, -1600)
			So(above, ShouldEqual, below)
		})

		Convey("Within the first steps, the extra penalty applies", func() {
			reward, _, _ := Shape(0, 0, true, "90_-300", 2)
			So(reward, ShouldEqual, -4000)
		})
	})

	Convey("When the terminal step also passed a pipe", t, func() {
		reward, prev, err := Shape(4, 5, true, "0_80", 40)
		So(err, ShouldBeNil)
		So(reward, ShouldEqual, models.CLEAN_DEATH_REWARD)
		So(prev, ShouldEqual, 5)
	})

	Convey("When the terminal key is malformed", t, func() {
		_, prev, err := Shape(1, 1, true, "broken", 3)
		So(errors.Is(err, models.ErrMalformedKey), ShouldBeTrue)
		So(prev, ShouldEqual, 1)
	})

	Convey("Non-terminal keys are never parsed", t, func() {
		_, _, err := Shape(1, 1, false, "broken", 3)
		So(err, ShouldBeNil)
	})
}
