//go:build linux

package genericlinux

import (
	"context"
	"strconv"
	"sync"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/boarddemo/logging"
)

// chipPin drives one line of a GPIO character device through the ioctl interface.
type chipPin struct {
	devicePath string
	offset     uint32

	mu     sync.Mutex
	line   *gpio.Line
	logger logging.Logger
}

func newChipPin(devicePath, name string, logger logging.Logger) (*chipPin, error) {
	offset, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return nil, errors.Errorf("pin %q is not a line offset on %s", name, devicePath)
	}
	return &chipPin{devicePath: devicePath, offset: uint32(offset), logger: logger}, nil
}

// Only call with mu held. Opens the line as an output on first use.
func (pin *chipPin) openLine() error {
	if pin.line != nil {
		return nil
	}

	chip, err := gpio.OpenChip(pin.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLine(pin.offset, 0, gpio.Output, "boarddemo")
	if err != nil {
		return err
	}
	pin.line = line
	return nil
}

func (pin *chipPin) Set(ctx context.Context, isHigh bool) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openLine(); err != nil {
		return err
	}
	var value byte
	if isHigh {
		value = 1
	}
	return pin.line.SetValue(value)
}

func (pin *chipPin) Get(ctx context.Context) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openLine(); err != nil {
		return false, err
	}
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

func (pin *chipPin) Close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if pin.line == nil {
		return nil
	}
	pin.logger.Debugw("releasing gpio line", "chip", pin.devicePath, "offset", pin.offset)
	err := pin.line.Close()
	pin.line = nil
	return err
}
