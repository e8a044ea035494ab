package genericlinux

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type periphGpioPin struct {
	pin gpio.PinIO
}

func newPeriphPin(name string) (*periphGpioPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	return &periphGpioPin{pin: pin}, nil
}

func (gp *periphGpioPin) Set(ctx context.Context, high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp *periphGpioPin) Get(ctx context.Context) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}
