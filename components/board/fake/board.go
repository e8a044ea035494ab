// Package fake implements a fake board.
package fake

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/components/board/pinwrappers"
	"go.viam.com/boarddemo/logging"
)

// Model is the registered name of the fake board.
const Model = "fake"

// An analog on this pin always returns the value it was set to (zero until set). Analogs on any
// other pin walk through values between 0 and 1000.
var analogTestPin = "1"

func init() {
	board.RegisterBoard(Model, func(ctx context.Context, cfg board.Config, logger logging.Logger) (board.Board, error) {
		return NewBoard(ctx, cfg, logger)
	})
}

// NewBoard returns a new fake board. Analogs configured with an averaging window are wrapped in a
// smoother.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		Analogs:   map[string]*Analog{},
		smoothers: map[string]*pinwrappers.AnalogSmoother{},
		GPIOPins:  map[string]*GPIOPin{},
		logger:    logger,
	}
	for _, c := range conf.Analogs {
		a := newAnalogReader(c.Pin)
		b.Analogs[c.Name] = a
		if c.AverageOverMillis > 0 {
			b.smoothers[c.Name] = pinwrappers.SmoothAnalogReader(a, c, logger.Sublogger(c.Name))
		}
	}
	return b, nil
}

// A Board provides dummy data from fake parts in order to implement a Board.
type Board struct {
	mu         sync.RWMutex
	Analogs    map[string]*Analog
	smoothers  map[string]*pinwrappers.AnalogSmoother
	GPIOPins   map[string]*GPIOPin
	logger     logging.Logger
	CloseCount int
}

// AnalogByName returns the analog by the given name if it exists. Smoothed analogs are returned
// through their smoother.
func (b *Board) AnalogByName(name string) (board.Analog, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.smoothers[name]; ok {
		return s, true
	}
	a, ok := b.Analogs[name]
	if !ok {
		return nil, false
	}
	return a, true
}

// AnalogNames returns the configured analog names, sorted.
func (b *Board) AnalogNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := lo.Keys(b.Analogs)
	sort.Strings(names)
	return names
}

// GPIOPinByName returns the GPIO pin by the given name, creating it on first use.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if name == "" {
		return nil, errors.New("pin name cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p, nil
}

// Close stops any smoothers.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++

	var errs error
	for _, s := range b.smoothers {
		errs = multierr.Combine(errs, s.Close(ctx))
	}
	b.smoothers = map[string]*pinwrappers.AnalogSmoother{}
	return errs
}

// An Analog reads back the same set value on the test pin and a changing value elsewhere.
type Analog struct {
	Mu        sync.Mutex
	pin       string
	Value     int
	fakeValue int
}

func newAnalogReader(pin string) *Analog {
	//nolint:gosec
	return &Analog{pin: pin, fakeValue: rand.Intn(1001)}
}

// Read returns the current value.
func (a *Analog) Read(ctx context.Context) (int, error) {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	if a.pin != analogTestPin {
		a.fakeValue++
		a.fakeValue %= 1001
		a.Value = a.fakeValue
	}
	return a.Value, nil
}

// Set is used to set the value of an Analog.
func (a *Analog) Set(value int) {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.Value = value
}

// A GPIOPin reads back the same set values and counts transitions.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	history []bool
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.high = high
	gp.history = append(gp.history, high)
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.high, nil
}

// History returns every value the pin was set to, in order.
func (gp *GPIOPin) History() []bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	out := make([]bool, len(gp.history))
	copy(out, gp.history)
	return out
}
