package ulp

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/utils"
)

// DefaultTimerPeriod is how often a program is re-run while the timer is enabled.
const DefaultTimerPeriod = 5 * time.Minute

// Emulator runs co-processor programs on the host, blinking a board pin.
type Emulator struct {
	mu            sync.Mutex
	mem           [RTCSlowMemSize]byte
	loaded        bool
	timerEnabled  bool
	timerPeriod   time.Duration
	wakeupEnabled bool
	finished      bool
	running       bool

	led     board.GPIOPin
	clock   clock.Clock
	logger  logging.Logger
	workers *utils.StoppableWorkers

	wakeOnce sync.Once
	wakeup   chan struct{}
	runs     chan struct{}
}

// EmulatorOption configures an Emulator.
type EmulatorOption func(*Emulator)

// WithEmulatorClock replaces the clock used for blink timing.
func WithEmulatorClock(clk clock.Clock) EmulatorOption {
	return func(e *Emulator) { e.clock = clk }
}

// WithTimerPeriod sets how often the program re-runs while the timer is enabled.
func WithTimerPeriod(d time.Duration) EmulatorOption {
	return func(e *Emulator) { e.timerPeriod = d }
}

// NewEmulator returns an emulator that blinks `led`. The timer starts enabled, as it does on
// hardware after a program is loaded.
func NewEmulator(led board.GPIOPin, logger logging.Logger, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		timerEnabled: true,
		timerPeriod:  DefaultTimerPeriod,
		led:          led,
		clock:        clock.New(),
		logger:       logger,
		workers:      utils.NewStoppableWorkers(context.Background()),
		wakeup:       make(chan struct{}),
		runs:         make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadBinary copies the image's text and data into memory and zeroes its bss.
func (e *Emulator) LoadBinary(image []byte) error {
	p, err := ParseProgram(image)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("cannot load a program while one is running")
	}
	n := copy(e.mem[:], p.Text)
	n += copy(e.mem[n:], p.Data)
	for i := n; i < n+int(p.BSSSize); i++ {
		e.mem[i] = 0
	}
	e.loaded = true
	return nil
}

// EnableTimer turns periodic re-runs on or off.
func (e *Emulator) EnableTimer(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timerEnabled = enabled
}

func memOffset(addr uint32) (int, error) {
	if addr < RTCSlowMemBase || addr-RTCSlowMemBase > RTCSlowMemSize-4 {
		return 0, errors.Errorf("address %#x outside RTC slow memory", addr)
	}
	if addr%4 != 0 {
		return 0, errors.Errorf("address %#x is not word aligned", addr)
	}
	return int(addr - RTCSlowMemBase), nil
}

// ReadWord reads a little-endian word.
func (e *Emulator) ReadWord(addr uint32) (uint32, error) {
	off, err := memOffset(addr)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return binary.LittleEndian.Uint32(e.mem[off:]), nil
}

// WriteWord writes a little-endian word.
func (e *Emulator) WriteWord(addr, value uint32) error {
	off, err := memOffset(addr)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	binary.LittleEndian.PutUint32(e.mem[off:], value)
	return nil
}

// Run starts the loaded program in the background.
func (e *Emulator) Run() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return errors.New("no program loaded")
	}
	if e.running {
		return errors.New("program already running")
	}
	if _, _, err := decodeBlink(e.mem[:12]); err != nil {
		return err
	}
	e.running = true
	e.workers.Add(e.runLoop)
	return nil
}

func (e *Emulator) runLoop(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	for {
		if err := e.runOnce(ctx); err != nil {
			if ctx.Err() == nil {
				e.logger.CErrorw(ctx, "co-processor program failed", "error", err)
			}
			return
		}
		e.mu.Lock()
		e.finished = true
		wake := e.wakeupEnabled
		again := e.timerEnabled
		period := e.timerPeriod
		e.mu.Unlock()

		select {
		case e.runs <- struct{}{}:
		default:
		}
		if wake {
			e.signalWakeup()
		}
		if !again {
			return
		}
		if err := e.sleep(ctx, period); err != nil {
			return
		}
	}
}

func (e *Emulator) runOnce(ctx context.Context) error {
	e.mu.Lock()
	cyclesAddr, period, err := decodeBlink(e.mem[:12])
	e.mu.Unlock()
	if err != nil {
		return err
	}
	cycles, err := e.ReadWord(cyclesAddr)
	if err != nil {
		return err
	}
	e.logger.CDebugw(ctx, "co-processor blinking", "cycles", cycles, "period", period)

	half := period / 2
	for i := uint32(0); i < cycles; i++ {
		if err := e.led.Set(ctx, true); err != nil {
			return err
		}
		if err := e.sleep(ctx, half); err != nil {
			return err
		}
		if err := e.led.Set(ctx, false); err != nil {
			return err
		}
		if err := e.sleep(ctx, half); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emulator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := e.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnableWakeup arms the wakeup signal. If the program already finished, it fires immediately.
func (e *Emulator) EnableWakeup() error {
	e.mu.Lock()
	e.wakeupEnabled = true
	finished := e.finished
	e.mu.Unlock()
	if finished {
		e.signalWakeup()
	}
	return nil
}

func (e *Emulator) signalWakeup() {
	e.wakeOnce.Do(func() { close(e.wakeup) })
}

// Wakeup is closed once the program signals the main processor.
func (e *Emulator) Wakeup() <-chan struct{} {
	return e.wakeup
}

// Runs receives one value per completed program run, when there is room.
func (e *Emulator) Runs() <-chan struct{} {
	return e.runs
}

// Close stops a running program.
func (e *Emulator) Close() error {
	e.workers.Stop()
	return nil
}
