// Package display draws the startup hello world on an SSD1306 OLED connected over I2C.
package display

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	periphdisplay "periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/logging"
)

// Colors of the greeting. On a monochrome panel the fill is dark and the frame and text are lit.
var (
	FillColor   = color.RGBA{B: 0xff, A: 0xff}
	StrokeColor = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	TextColor   = color.White
)

const (
	strokeWidth = 1
	textLeft    = 10
)

var textFace = basicfont.Face7x13

// Render returns the greeting for a screen of the given bounds: a filled box with a one pixel
// frame and text left aligned and vertically centered.
func Render(bounds image.Rectangle, text string) *image.Gray {
	img := image.NewGray(bounds)
	draw.Draw(img, bounds, image.NewUniform(StrokeColor), image.Point{}, draw.Src)
	draw.Draw(img, bounds.Inset(strokeWidth), image.NewUniform(FillColor), image.Point{}, draw.Src)

	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(TextColor),
		Face: textFace,
		Dot:  fixed.P(bounds.Min.X+textLeft, bounds.Min.Y+(bounds.Dy()+textFace.Ascent)/2),
	}
	drawer.DrawString(text)
	return img
}

// Display is an SSD1306 controller on an I2C bus.
type Display struct {
	dev      periphdisplay.Drawer
	closeBus func() error
	logger   logging.Logger
}

// Open initializes the host drivers, opens the configured bus and brings up the controller. When
// reset is not nil it is pulsed first.
func Open(ctx context.Context, cfg config.DisplayConfig, reset board.GPIOPin, logger logging.Logger) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing periph host drivers")
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C bus %q", cfg.I2CBus)
	}
	d, err := newDisplay(ctx, bus, cfg, reset, logger)
	if err != nil {
		return nil, multierr.Combine(err, bus.Close())
	}
	d.closeBus = bus.Close
	return d, nil
}

func newDisplay(ctx context.Context, bus i2c.Bus, cfg config.DisplayConfig, reset board.GPIOPin, logger logging.Logger) (*Display, error) {
	logger.CInfow(ctx, "About to initialize the SSD1306 I2C LED driver", "bus", bus.String(), "width", cfg.Width, "height", cfg.Height)
	if reset != nil {
		if err := pulseReset(ctx, reset); err != nil {
			return nil, errors.Wrap(err, "resetting display")
		}
	}

	opts := ssd1306.DefaultOpts
	opts.W, opts.H = cfg.Width, cfg.Height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, errors.Wrap(err, "initializing SSD1306")
	}
	return &Display{dev: dev, logger: logger}, nil
}

// resetSequence is the RES line sequence the controller expects after power up.
var resetSequence = []struct {
	high bool
	hold time.Duration
}{
	{true, time.Millisecond},
	{false, 10 * time.Millisecond},
	{true, 0},
}

func pulseReset(ctx context.Context, pin board.GPIOPin) error {
	for _, step := range resetSequence {
		if err := pin.Set(ctx, step.high); err != nil {
			return err
		}
		if step.hold > 0 && !goutils.SelectContextOrWait(ctx, step.hold) {
			return ctx.Err()
		}
	}
	return nil
}

// Hello draws text on the whole screen.
func (d *Display) Hello(ctx context.Context, text string) error {
	bounds := d.dev.Bounds()
	if err := d.dev.Draw(bounds, Render(bounds, text), bounds.Min); err != nil {
		return errors.Wrap(err, "drawing greeting")
	}
	d.logger.CInfo(ctx, "LED rendering done")
	return nil
}

// Close releases the bus. The picture stays on the screen.
func (d *Display) Close() error {
	if d.closeBus == nil {
		return nil
	}
	return d.closeBus()
}
