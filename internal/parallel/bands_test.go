package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestPlan(t *testing.T) {
	test.That(t, Plan(64, 8, 4), test.ShouldResemble, []int{0, 16, 32, 48, 64})
	test.That(t, Plan(20, 8, 4), test.ShouldResemble, []int{0, 8, 16, 20})
	test.That(t, Plan(8, 8, 16), test.ShouldResemble, []int{0, 8})
	test.That(t, Plan(10, 1, 1), test.ShouldResemble, []int{0, 10})
	test.That(t, Plan(0, 8, 4), test.ShouldResemble, []int{0, 0})
}

func TestBandsCoversRangeOnce(t *testing.T) {
	const n = 1000
	hits := make([]int32, n)
	err := Bands(context.Background(), n, 8, 7, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})
	test.That(t, err, test.ShouldBeNil)
	for i := range hits {
		test.That(t, hits[i], test.ShouldEqual, int32(1))
	}
}

func TestBandsSerial(t *testing.T) {
	var calls int
	err := Bands(context.Background(), 100, 8, 1, func(lo, hi int) {
		calls++
		test.That(t, lo, test.ShouldEqual, 0)
		test.That(t, hi, test.ShouldEqual, 100)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestBandsPanicBecomesError(t *testing.T) {
	err := Bands(context.Background(), 64, 8, 4, func(lo, hi int) {
		if lo == 16 {
			panic("boom")
		}
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
}

func TestBandsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Bands(ctx, 64, 8, 4, func(lo, hi int) { called = true })
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, called, test.ShouldBeFalse)
}
