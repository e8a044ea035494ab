//go:build linux

package genericlinux

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/logging"
)

func TestIIOAnalog(t *testing.T) {
	root := t.TempDir()
	dev := filepath.Join(root, DefaultIIODevice)
	test.That(t, os.MkdirAll(dev, 0o755), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dev, "in_voltage3_raw"), []byte("1234\n"), 0o600), test.ShouldBeNil)

	a := &iioAnalog{root: root, device: DefaultIIODevice, channel: "3"}
	v, err := a.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 1234)

	missing := &iioAnalog{root: root, device: DefaultIIODevice, channel: "4"}
	_, err = missing.Read(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reading analog channel 4")

	test.That(t, os.WriteFile(filepath.Join(dev, "in_voltage5_raw"), []byte("high"), 0o600), test.ShouldBeNil)
	garbled := &iioAnalog{root: root, device: DefaultIIODevice, channel: "5"}
	_, err = garbled.Read(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parsing analog channel 5")
}

func TestChipBoard(t *testing.T) {
	cfg := board.Config{
		Model:    Model,
		LEDPin:   "4",
		GPIOChip: "/dev/gpiochip-does-not-exist",
		Analogs:  []board.AnalogReaderConfig{{Name: "pot", Pin: "0"}},
	}
	b, err := NewBoard(context.Background(), cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.AnalogNames(), test.ShouldResemble, []string{"pot"})
	_, ok := b.AnalogByName("pot")
	test.That(t, ok, test.ShouldBeTrue)

	_, err = b.GPIOPinByName("led")
	test.That(t, err, test.ShouldNotBeNil)

	pin, err := b.GPIOPinByName("4")
	test.That(t, err, test.ShouldBeNil)
	again, err := b.GPIOPinByName("4")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, pin)

	// The chip does not exist, so opening the line fails lazily.
	test.That(t, pin.Set(context.Background(), true), test.ShouldNotBeNil)

	test.That(t, b.Close(context.Background()), test.ShouldBeNil)
}
