package utils

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/boarddemo/logging"
)

func TestGuard(t *testing.T) {
	cleaned := 0
	func() {
		guard := NewGuard(func() { cleaned++ })
		defer guard.OnFail()
	}()
	test.That(t, cleaned, test.ShouldEqual, 1)

	func() {
		guard := NewGuard(func() { cleaned++ })
		defer guard.OnFail()
		guard.Success()
	}()
	test.That(t, cleaned, test.ShouldEqual, 1)
}

func TestRollingAverage(t *testing.T) {
	ra := NewRollingAverage(3)
	test.That(t, ra.NumSamples(), test.ShouldEqual, 3)
	test.That(t, ra.Average(), test.ShouldEqual, 0)
	test.That(t, ra.Samples(), test.ShouldBeEmpty)

	ra.Add(3)
	ra.Add(6)
	test.That(t, ra.Average(), test.ShouldEqual, 4)
	ra.Add(9)
	ra.Add(12)
	test.That(t, ra.Average(), test.ShouldEqual, 9)
	test.That(t, ra.Samples(), test.ShouldHaveLength, 3)

	test.That(t, NewRollingAverage(0).NumSamples(), test.ShouldEqual, 1)
}

func TestStoppableWorkers(t *testing.T) {
	var running atomic.Int32
	worker := func(ctx context.Context) {
		running.Inc()
		<-ctx.Done()
		running.Dec()
	}
	sw := NewStoppableWorkers(context.Background(), worker, worker)
	sw.Add(worker)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, running.Load(), test.ShouldEqual, int32(3))
	})

	sw.Stop()
	test.That(t, running.Load(), test.ShouldEqual, int32(0))
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Adding after Stop does nothing.
	sw.Add(worker)
	test.That(t, running.Load(), test.ShouldEqual, int32(0))
}

func TestSlowLogger(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mockClock := clock.NewMock()
	done := SlowLogger(context.Background(), mockClock, "still stopping", "what", "web", logger)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(time.Second)
		test.That(tb, logs.FilterMessage("still stopping").Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	entry := logs.FilterMessage("still stopping").All()[0]
	test.That(t, entry.ContextMap()["what"], test.ShouldEqual, "web")
	done()
}
