package ulp

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/boarddemo/components/board/fake"
	"go.viam.com/boarddemo/logging"
)

func newTestEmulator(t *testing.T, opts ...EmulatorOption) (*Emulator, *fake.GPIOPin) {
	t.Helper()
	led := &fake.GPIOPin{}
	e := NewEmulator(led, logging.NewTestLogger(t), opts...)
	t.Cleanup(func() { test.That(t, e.Close(), test.ShouldBeNil) })
	return e, led
}

func TestEmulatorMemory(t *testing.T) {
	e, _ := newTestEmulator(t)
	test.That(t, e.LoadBinary(BlinkProgram(DefaultBlinkCycles, 0).Bytes()), test.ShouldBeNil)

	v, err := e.ReadWord(BlinkCyclesAddr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, DefaultBlinkCycles)

	test.That(t, e.WriteWord(BlinkCyclesAddr, 3), test.ShouldBeNil)
	v, err = e.ReadWord(BlinkCyclesAddr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(3))

	_, err = e.ReadWord(RTCSlowMemBase - 4)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = e.ReadWord(RTCSlowMemBase + RTCSlowMemSize)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, e.WriteWord(RTCSlowMemBase+2, 1), test.ShouldNotBeNil)

	last := RTCSlowMemBase + RTCSlowMemSize - 4
	test.That(t, e.WriteWord(last, 0xdeadbeef), test.ShouldBeNil)
	v, err = e.ReadWord(last)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(0xdeadbeef))
}

func TestEmulatorRunWithoutProgram(t *testing.T) {
	e, _ := newTestEmulator(t)
	test.That(t, e.Run(), test.ShouldNotBeNil)
}

func TestEmulatorBlinksAndWakes(t *testing.T) {
	e, led := newTestEmulator(t)
	test.That(t, e.LoadBinary(BlinkProgram(DefaultBlinkCycles, 0).Bytes()), test.ShouldBeNil)
	e.EnableTimer(false)
	test.That(t, e.WriteWord(BlinkCyclesAddr, 3), test.ShouldBeNil)
	test.That(t, e.Run(), test.ShouldBeNil)
	test.That(t, e.EnableWakeup(), test.ShouldBeNil)

	select {
	case <-e.Wakeup():
	case <-time.After(5 * time.Second):
		t.Fatal("co-processor never signaled wakeup")
	}
	test.That(t, led.History(), test.ShouldResemble, []bool{true, false, true, false, true, false})
}

func TestEmulatorNoWakeupUnlessEnabled(t *testing.T) {
	e, _ := newTestEmulator(t)
	test.That(t, e.LoadBinary(BlinkProgram(1, 0).Bytes()), test.ShouldBeNil)
	e.EnableTimer(false)
	test.That(t, e.Run(), test.ShouldBeNil)

	<-e.Runs()
	select {
	case <-e.Wakeup():
		t.Fatal("wakeup signaled without being enabled")
	default:
	}
	test.That(t, e.EnableWakeup(), test.ShouldBeNil)
	<-e.Wakeup()
}

func TestEmulatorTimerReruns(t *testing.T) {
	mockClock := clock.NewMock()
	e, led := newTestEmulator(t, WithEmulatorClock(mockClock), WithTimerPeriod(time.Minute))
	test.That(t, e.LoadBinary(BlinkProgram(1, 0).Bytes()), test.ShouldBeNil)
	test.That(t, e.Run(), test.ShouldBeNil)

	<-e.Runs()
	test.That(t, led.History(), test.ShouldHaveLength, 2)

	// The timer is enabled by default, so advancing past the period runs the program again.
	deadline := time.Now().Add(5 * time.Second)
	for len(led.History()) < 4 && time.Now().Before(deadline) {
		mockClock.Add(time.Minute)
	}
	<-e.Runs()
	test.That(t, led.History(), test.ShouldResemble, []bool{true, false, true, false})
}

func TestEmulatorBlinkTiming(t *testing.T) {
	mockClock := clock.NewMock()
	e, led := newTestEmulator(t, WithEmulatorClock(mockClock))
	test.That(t, e.LoadBinary(BlinkProgram(2, time.Second).Bytes()), test.ShouldBeNil)
	e.EnableTimer(false)
	test.That(t, e.Run(), test.ShouldBeNil)

	deadline := time.Now().Add(5 * time.Second)
	done := false
	for !done && time.Now().Before(deadline) {
		select {
		case <-e.Runs():
			done = true
		default:
			mockClock.Add(500 * time.Millisecond)
		}
	}
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, led.History(), test.ShouldResemble, []bool{true, false, true, false})
}
