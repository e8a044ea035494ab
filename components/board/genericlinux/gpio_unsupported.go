//go:build !linux

package genericlinux

import (
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/logging"
)

func newChipPin(devicePath, name string, logger logging.Logger) (board.GPIOPin, error) {
	return nil, errors.New("gpio character devices are only supported on linux")
}
