package ulp

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/boarddemo/logging"
)

// DefaultSleepDuration bounds the deep sleep when the co-processor never wakes the main processor.
const DefaultSleepDuration = time.Minute

// ErrDeepSleepReturned is returned by Start when the sleeper comes back, which only test
// sleepers do.
var ErrDeepSleepReturned = errors.New("deep sleep returned")

// StartConfig describes what Start loads and how long the main processor sleeps.
type StartConfig struct {
	// Image is the program to load. Nil loads BlinkProgram(DefaultBlinkCycles, DefaultBlinkPeriod).
	Image []byte
	// CyclesAddr is where the program keeps its blink count. Zero means BlinkCyclesAddr.
	CyclesAddr uint32
	// SleepDuration is the timer wake source. Zero means DefaultSleepDuration.
	SleepDuration time.Duration
}

// Start hands `cycles` to the co-processor, starts it and puts the main processor to sleep. It
// returns only if a step before sleeping fails.
func Start(ctx context.Context, cp Coprocessor, sleeper Sleeper, cfg StartConfig, cycles uint32, logger logging.Logger) error {
	image := cfg.Image
	if image == nil {
		image = BlinkProgram(DefaultBlinkCycles, DefaultBlinkPeriod).Bytes()
	}
	cyclesAddr := cfg.CyclesAddr
	if cyclesAddr == 0 {
		cyclesAddr = BlinkCyclesAddr
	}
	sleepFor := cfg.SleepDuration
	if sleepFor <= 0 {
		sleepFor = DefaultSleepDuration
	}

	if err := cp.LoadBinary(image); err != nil {
		return errors.Wrap(err, "loading ulp binary")
	}
	logger.CInfo(ctx, "ULP binary loaded successfully")

	cp.EnableTimer(false)
	logger.CInfo(ctx, "ULP timer disabled")

	defaultCycles, err := cp.ReadWord(cyclesAddr)
	if err != nil {
		return errors.Wrap(err, "reading default cycles")
	}
	logger.CInfow(ctx, "Default ULP LED blink cycles", "cycles", defaultCycles)

	if err := cp.WriteWord(cyclesAddr, cycles); err != nil {
		return errors.Wrap(err, "writing cycles")
	}
	sent, err := cp.ReadWord(cyclesAddr)
	if err != nil {
		return errors.Wrap(err, "reading back cycles")
	}
	logger.CInfow(ctx, "Sent LED blink cycles to the ULP", "cycles", sent)

	if err := cp.Run(); err != nil {
		return errors.Wrap(err, "running ulp program")
	}
	logger.CInfo(ctx, "ULP started")

	if err := cp.EnableWakeup(); err != nil {
		return errors.Wrap(err, "enabling ulp wakeup")
	}
	logger.CInfo(ctx, "Wakeup from ULP enabled")

	if err := ctx.Err(); err != nil {
		return err
	}
	logger.CInfow(ctx, "About to get to sleep now. Will wake up automatically either on timeout or once the ULP is done blinking the LED",
		"timeout", sleepFor)
	sleeper.DeepSleep(sleepFor)
	return ErrDeepSleepReturned
}
