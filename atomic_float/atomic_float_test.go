package atomic_float

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When AtomicAdd is called", t, func() {
		Convey("When multiple writers add to the float value concurrently", func() {
			af := NewAtomicFloat64(0.0)
			num_ops := 3000
			num_writers := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(num_writers)
			adder := func() {
				<-start
				for i := 0; i < num_ops; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(1.0) {
					}
				}
				wg.Done()
			}

			for i := 0; i < num_writers; i++ {
				go adder()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(num_ops*num_writers))
		})

		Convey("When a single writer adds without contention it always succeeds", func() {
			af := NewAtomicFloat64(1.5)
			newVal, ok := af.AtomicAdd(2.0)
			So(ok, ShouldBeTrue)
			So(newVal, ShouldEqual, 3.5)
			So(af.AtomicRead(), ShouldEqual, 3.5)
		})
	})
}

func TestAtomicMax(t *testing.T) {
	Convey("When AtomicMax is called", t, func() {
		af := NewAtomicFloat64(10)

		Convey("A smaller value leaves it unchanged", func() {
			So(af.AtomicMax(3), ShouldBeFalse)
			So(af.AtomicRead(), ShouldEqual, 10)
		})

		Convey("A larger value raises it", func() {
			So(af.AtomicMax(42), ShouldBeTrue)
			So(af.AtomicRead(), ShouldEqual, 42)
		})

		Convey("Concurrent writers leave the largest value", func() {
			wg := sync.WaitGroup{}
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(v int) {
					defer wg.Done()
					af.AtomicMax(float64(v))
				}(i)
			}
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, 99)
		})
	})
}

func TestAtomicSet(t *testing.T) {
	Convey("AtomicSet overwrites the value", t, func() {
		af := NewAtomicFloat64(-1)
		af.AtomicSet(7.25)
		So(af.AtomicRead(), ShouldEqual, 7.25)
	})
}
