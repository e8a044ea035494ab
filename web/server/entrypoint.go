// Package server implements the entry point for running the board demo.
package server

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/boarddemo/components/board"
	// registers all board models.
	_ "go.viam.com/boarddemo/components/board/register"
	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/demo"
	"go.viam.com/boarddemo/display"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/ulp"
	"go.viam.com/boarddemo/utils"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,usage=demo config file; the built in fake board config is used when omitted"`
	Debug      bool   `flag:"debug"`
	Watch      bool   `flag:"watch,usage=re-read the config file when it changes"`
}

// exit ends the process once the emulated deep sleep wakes.
var exit = os.Exit

// RunServer is an entry point to starting the demo that can be called by main in a code sample
// or otherwise be used to initialize the demo.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	config.InitLoggingSettings(logger, argsParsed.Debug)

	cfg, err := readConfig(ctx, argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	config.UpdateFileConfigDebug(cfg.Debug)
	if !argsParsed.Debug && !cfg.Debug {
		logger.SetLevel(cfg.Log.ParsedLevel)
	}
	closeLog := func() error { return nil }
	if cfg.Log.File != "" {
		appender, closer := logging.NewFileAppender(cfg.Log.File, cfg.Log.MaxSizeMB)
		logger.AddAppender(appender)
		closeLog = closer.Close
	}
	logger.Infow("starting demo", "config", cfg.String())

	runner, release, err := newRunner(ctx, cfg, logger, closeLog)
	if err != nil {
		return multierr.Combine(err, closeLog())
	}
	defer func() {
		err = multierr.Combine(err, release())
	}()

	if argsParsed.Watch && cfg.ConfigFilePath != "" {
		watcher := utils.NewStoppableWorkers(ctx, func(ctx context.Context) {
			if err := config.Watch(ctx, cfg.ConfigFilePath, logger, func(newCfg *config.Config) {
				config.UpdateFileConfigDebug(newCfg.Debug)
			}); err != nil {
				logger.Warnw("config watcher stopped", "error", err)
			}
		})
		defer watcher.Stop()
	}

	err = runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("error running demo", "error", err)
	}
	return err
}

func readConfig(ctx context.Context, path string, logger logging.Logger) (*config.Config, error) {
	if path == "" {
		logger.Info("no config file given; using the fake board")
		return config.Default(), nil
	}
	initialReadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return config.Read(initialReadCtx, path, logger)
}

// newRunner builds the board, the optional display and the emulated co-processor for cfg. The
// returned release closes them and then calls closeLog, once; the sleeper also calls it before
// the process exits.
func newRunner(
	ctx context.Context,
	cfg *config.Config,
	logger logging.Logger,
	closeLog func() error,
) (*demo.Runner, func() error, error) {
	b, err := board.NewBoard(ctx, cfg.Board, logger)
	if err != nil {
		return nil, nil, err
	}
	guard := utils.NewGuard(func() {
		goutils.UncheckedError(b.Close(ctx))
	})
	defer guard.OnFail()

	led, err := b.GPIOPinByName(cfg.Board.LEDPin)
	if err != nil {
		return nil, nil, err
	}
	oled, err := openDisplay(ctx, cfg.Display, b, logger.Sublogger("display"))
	if err != nil {
		return nil, nil, err
	}

	emulator := ulp.NewEmulator(led, logger.Sublogger("ulp_emulator"))
	release := sync.OnceValue(func() error {
		var errs error
		if oled != nil {
			errs = multierr.Append(errs, oled.Close())
		}
		return multierr.Combine(errs, emulator.Close(), b.Close(context.Background()), closeLog())
	})
	sleeper := &ulp.HostSleeper{
		Wakeup:     emulator.Wakeup(),
		Logger:     logger,
		BeforeExit: release,
		Exit:       exit,
	}
	runner := &demo.Runner{
		Config:      cfg,
		Board:       b,
		Coprocessor: emulator,
		Sleeper:     sleeper,
		Logger:      logger,
	}
	if oled != nil {
		runner.Display = oled
	}
	guard.Success()
	return runner, release, nil
}

// openDisplay returns nil when the display is disabled or cannot be brought up; a missing panel
// should not keep the rest of the demo from running. A reset pin the board does not have is a
// config error.
func openDisplay(ctx context.Context, cfg config.DisplayConfig, b board.Board, logger logging.Logger) (*display.Display, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var reset board.GPIOPin
	if cfg.ResetPin != "" {
		pin, err := b.GPIOPinByName(cfg.ResetPin)
		if err != nil {
			return nil, errors.Wrap(err, "display reset pin")
		}
		reset = pin
	}
	d, err := display.Open(ctx, cfg, reset, logger)
	if err != nil {
		logger.CWarnw(ctx, "display unavailable", "error", err)
		return nil, nil
	}
	return d, nil
}
