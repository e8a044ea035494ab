package genericlinux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// IIODevicesRoot is where the kernel lists IIO devices.
	IIODevicesRoot = "/sys/bus/iio/devices"
	// DefaultIIODevice is used when no device is configured.
	DefaultIIODevice = "iio:device0"
)

// iioAnalog reads a single ADC channel through sysfs, e.g. iio:device0/in_voltage3_raw.
type iioAnalog struct {
	root    string
	device  string
	channel string
}

func (a *iioAnalog) path() string {
	return filepath.Join(a.root, a.device, fmt.Sprintf("in_voltage%s_raw", a.channel))
}

func (a *iioAnalog) Read(ctx context.Context) (int, error) {
	raw, err := os.ReadFile(a.path())
	if err != nil {
		return 0, errors.Wrapf(err, "reading analog channel %s", a.channel)
	}
	val, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, errors.Wrapf(err, "parsing analog channel %s", a.channel)
	}
	return val, nil
}
