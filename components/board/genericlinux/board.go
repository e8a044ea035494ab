// Package genericlinux is a board model for Linux single board computers. GPIO pins are driven
// through periph.io, or through the GPIO character device when a chip is configured. Analogs are
// read from the kernel's IIO subsystem.
package genericlinux

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"periph.io/x/host/v3"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/components/board/pinwrappers"
	"go.viam.com/boarddemo/logging"
)

// Model is the registered name of this board.
const Model = "genericlinux"

func init() {
	board.RegisterBoard(Model, func(ctx context.Context, cfg board.Config, logger logging.Logger) (board.Board, error) {
		return NewBoard(ctx, cfg, logger)
	})
}

// Board is a Linux board.
type Board struct {
	mu       sync.Mutex
	gpioChip string
	// pins opened so far, keyed by name. Character device lines stay open until Close.
	pins    map[string]board.GPIOPin
	analogs map[string]board.Analog
	// smoothers is the subset of analogs that sample in the background.
	smoothers []*pinwrappers.AnalogSmoother
	logger    logging.Logger
}

// NewBoard initializes the configured GPIO backend and analogs.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		gpioChip: conf.GPIOChip,
		pins:     map[string]board.GPIOPin{},
		analogs:  map[string]board.Analog{},
		logger:   logger,
	}
	if b.gpioChip == "" {
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "initializing periph.io host drivers")
		}
	}

	root := IIODevicesRoot
	device := conf.IIODevice
	if device == "" {
		device = DefaultIIODevice
	}
	for _, c := range conf.Analogs {
		var a board.Analog = &iioAnalog{root: root, device: device, channel: c.Pin}
		if c.AverageOverMillis > 0 {
			s := pinwrappers.SmoothAnalogReader(a, c, logger.Sublogger(c.Name))
			b.smoothers = append(b.smoothers, s)
			a = s
		}
		b.analogs[c.Name] = a
	}
	return b, nil
}

// AnalogByName returns the analog by the given name if it exists.
func (b *Board) AnalogByName(name string) (board.Analog, bool) {
	a, ok := b.analogs[name]
	return a, ok
}

// AnalogNames returns the configured analog names, sorted.
func (b *Board) AnalogNames() []string {
	names := lo.Keys(b.analogs)
	sort.Strings(names)
	return names
}

// GPIOPinByName returns the pin with the given name. With a GPIO chip configured the name is the
// line offset on that chip, otherwise it is any name periph.io's registry knows, e.g. "GPIO17".
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[name]; ok {
		return p, nil
	}

	var (
		p   board.GPIOPin
		err error
	)
	if b.gpioChip != "" {
		p, err = newChipPin(b.gpioChip, name, b.logger)
	} else {
		p, err = newPeriphPin(name)
	}
	if err != nil {
		return nil, err
	}
	b.pins[name] = p
	return p, nil
}

// Close stops sampling and releases opened pins.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error
	for _, s := range b.smoothers {
		errs = multierr.Combine(errs, s.Close(ctx))
	}
	b.smoothers = nil
	for name, p := range b.pins {
		if closer, ok := p.(interface{ Close() error }); ok {
			errs = multierr.Combine(errs, errors.Wrapf(closer.Close(), "closing pin %s", name))
		}
	}
	b.pins = map[string]board.GPIOPin{}
	return errs
}
