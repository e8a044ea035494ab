package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
)

type waitResult struct {
	val uint32
	err error
}

func startWaiter(ctx context.Context, g *Gate[uint32], interval time.Duration, ticks *atomic.Int64) <-chan waitResult {
	out := make(chan waitResult, 1)
	go func() {
		v, err := g.WaitForValue(ctx, interval, func() { ticks.Inc() })
		out <- waitResult{v, err}
	}()
	return out
}

// waitParked blocks until the waiter has started its nth timed wait.
func waitParked(t *testing.T, g *Gate[uint32], n int64) {
	t.Helper()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, g.waitCount(), test.ShouldEqual, n)
	})
}

func TestSetBeforeWait(t *testing.T) {
	g := New[uint32]()
	test.That(t, g.State(), test.ShouldEqual, Empty)
	test.That(t, g.Set(5), test.ShouldBeNil)
	test.That(t, g.State(), test.ShouldEqual, Filled)

	ticks := 0
	v, err := g.WaitForValue(context.Background(), time.Second, func() { ticks++ })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(5))
	test.That(t, ticks, test.ShouldEqual, 0)
	test.That(t, g.State(), test.ShouldEqual, Consumed)
}

func TestTicksWhileWaiting(t *testing.T) {
	mockClock := clock.NewMock()
	g := New[uint32](WithClock(mockClock))
	var ticks atomic.Int64
	res := startWaiter(context.Background(), g, time.Second, &ticks)

	// Three full intervals then half of a fourth: floor(3.5) ticks.
	for i := int64(1); i <= 3; i++ {
		waitParked(t, g, i)
		mockClock.Add(time.Second)
	}
	waitParked(t, g, 4)
	mockClock.Add(500 * time.Millisecond)
	test.That(t, ticks.Load(), test.ShouldEqual, int64(3))

	test.That(t, g.Set(42), test.ShouldBeNil)
	r := <-res
	test.That(t, r.err, test.ShouldBeNil)
	test.That(t, r.val, test.ShouldEqual, uint32(42))
	test.That(t, ticks.Load(), test.ShouldEqual, int64(3))
}

func TestLastWriteWins(t *testing.T) {
	g := New[uint32](WithClock(clock.NewMock()))
	test.That(t, g.Set(7), test.ShouldBeNil)
	test.That(t, g.Set(9), test.ShouldBeNil)
	test.That(t, g.Overwritten(), test.ShouldEqual, int64(1))

	v, err := g.WaitForValue(context.Background(), time.Second, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(9))
}

func TestRejectPolicy(t *testing.T) {
	g := New[uint32](WithPolicy(Reject))
	test.That(t, g.Set(7), test.ShouldBeNil)
	test.That(t, g.Set(9), test.ShouldEqual, ErrAlreadySet)
	test.That(t, g.Overwritten(), test.ShouldEqual, int64(0))

	v, err := g.WaitForValue(context.Background(), time.Second, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(7))
}

func TestConsumedIsTerminal(t *testing.T) {
	for _, policy := range []Policy{Overwrite, Reject} {
		t.Run(policy.String(), func(t *testing.T) {
			g := New[uint32](WithPolicy(policy))
			test.That(t, g.Set(1), test.ShouldBeNil)
			_, err := g.WaitForValue(context.Background(), time.Second, nil)
			test.That(t, err, test.ShouldBeNil)

			test.That(t, g.Set(2), test.ShouldEqual, ErrConsumed)
			_, err = g.WaitForValue(context.Background(), time.Second, nil)
			test.That(t, err, test.ShouldEqual, ErrConsumed)
			test.That(t, g.State(), test.ShouldEqual, Consumed)
		})
	}
}

func TestContextCancel(t *testing.T) {
	mockClock := clock.NewMock()
	g := New[uint32](WithClock(mockClock))
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int64
	res := startWaiter(ctx, g, time.Second, &ticks)

	waitParked(t, g, 1)
	cancel()
	r := <-res
	test.That(t, r.err, test.ShouldEqual, context.Canceled)
	test.That(t, ticks.Load(), test.ShouldEqual, int64(0))
	test.That(t, g.State(), test.ShouldEqual, Empty)

	// The gate is still usable by a later waiter.
	test.That(t, g.Set(3), test.ShouldBeNil)
	v, err := g.WaitForValue(context.Background(), time.Second, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(3))
}

func TestSetFromTick(t *testing.T) {
	mockClock := clock.NewMock()
	g := New[uint32](WithClock(mockClock))
	var ticks atomic.Int64
	res := make(chan waitResult, 1)
	go func() {
		v, err := g.WaitForValue(context.Background(), 0, func() {
			if ticks.Inc() == 2 {
				test.That(t, g.Set(11), test.ShouldBeNil)
			}
		})
		res <- waitResult{v, err}
	}()

	waitParked(t, g, 1)
	mockClock.Add(DefaultPollInterval)
	waitParked(t, g, 2)
	mockClock.Add(DefaultPollInterval)

	r := <-res
	test.That(t, r.err, test.ShouldBeNil)
	test.That(t, r.val, test.ShouldEqual, uint32(11))
	test.That(t, ticks.Load(), test.ShouldEqual, int64(2))
}

func TestConcurrentProducers(t *testing.T) {
	g := New[uint32]()
	var ticks atomic.Int64
	res := startWaiter(context.Background(), g, 10*time.Millisecond, &ticks)

	var wg sync.WaitGroup
	for i := uint32(1); i <= 8; i++ {
		wg.Add(1)
		go func(v uint32) {
			defer wg.Done()
			err := g.Set(v)
			if err != nil {
				test.That(t, err, test.ShouldEqual, ErrConsumed)
			}
		}(i)
	}
	wg.Wait()

	r := <-res
	test.That(t, r.err, test.ShouldBeNil)
	test.That(t, r.val, test.ShouldBeBetweenOrEqual, uint32(1), uint32(8))
	test.That(t, g.State(), test.ShouldEqual, Consumed)
}

func TestRealClockWait(t *testing.T) {
	g := New[uint32]()
	var ticks atomic.Int64
	res := startWaiter(context.Background(), g, 5*time.Millisecond, &ticks)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, ticks.Load(), test.ShouldBeGreaterThanOrEqualTo, int64(2))
	})
	test.That(t, g.Set(10), test.ShouldBeNil)
	r := <-res
	test.That(t, r.err, test.ShouldBeNil)
	test.That(t, r.val, test.ShouldEqual, uint32(10))
}

func TestPolicyText(t *testing.T) {
	var p Policy
	test.That(t, p.UnmarshalText([]byte("Reject")), test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, Reject)
	text, err := p.MarshalText()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(text), test.ShouldEqual, "reject")

	test.That(t, p.UnmarshalText([]byte("sometimes")), test.ShouldNotBeNil)
	p, err = ParsePolicy("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, Overwrite)
}

func TestStateText(t *testing.T) {
	var s State
	test.That(t, s.UnmarshalText([]byte("filled")), test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, Filled)
	test.That(t, s.UnmarshalText([]byte("full")), test.ShouldNotBeNil)
}
