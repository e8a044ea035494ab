package ulp

import (
	"os"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/boarddemo/logging"
)

// A Sleeper puts the main processor into deep sleep. DeepSleep does not return: waking up
// restarts the program from scratch.
type Sleeper interface {
	DeepSleep(d time.Duration)
}

// HostSleeper emulates deep sleep on a host. It blocks until the co-processor signals a wakeup or
// the duration elapses, then ends the process the way a reset would.
type HostSleeper struct {
	// Wakeup is usually Coprocessor.Wakeup(). A nil channel only wakes on the timer.
	Wakeup <-chan struct{}
	Clock  clock.Clock
	Logger logging.Logger
	// BeforeExit, when set, releases what the process holds once it has woken. Its error is
	// logged; the process exits either way.
	BeforeExit func() error
	// Exit ends the process. Defaults to os.Exit.
	Exit func(code int)
}

// DeepSleep waits for a wake source, logs it and exits.
func (s *HostSleeper) DeepSleep(d time.Duration) {
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	exit := s.Exit
	if exit == nil {
		exit = os.Exit
	}

	timer := clk.Timer(d)
	defer timer.Stop()
	select {
	case <-s.Wakeup:
		s.Logger.Infow("woke from deep sleep", "cause", "ulp")
	case <-timer.C:
		s.Logger.Infow("woke from deep sleep", "cause", "timer", "slept", d)
	}
	if s.BeforeExit != nil {
		if err := s.BeforeExit(); err != nil {
			s.Logger.Warnw("error releasing resources before exit", "error", err)
		}
	}
	if err := s.Logger.Sync(); err != nil {
		s.Logger.Debugw("failed to sync logger", "error", err)
	}
	exit(0)
}
