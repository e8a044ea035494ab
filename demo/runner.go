// Package demo wires the board, the producers and the co-processor into the demo's one pass:
// warm up, wait for a blink count, count down, then hand over to the co-processor and sleep.
package demo

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/playground"
	"go.viam.com/boarddemo/trigger"
	"go.viam.com/boarddemo/ulp"
	"go.viam.com/boarddemo/utils"
	"go.viam.com/boarddemo/web"
)

// stopTimeout bounds how long producers get to shut down before the co-processor starts.
const stopTimeout = 5 * time.Second

// A Producer delivers cycle counts to the gate while it runs.
type Producer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// A Display shows the startup greeting.
type Display interface {
	Hello(ctx context.Context, text string) error
}

// Runner runs the demo once. Board, Coprocessor and Sleeper are required.
type Runner struct {
	Config      *config.Config
	Board       board.Board
	Coprocessor ulp.Coprocessor
	Sleeper     ulp.Sleeper
	Logger      logging.Logger

	// Display, when set, shows the greeting after the playground demos.
	Display Display
	// Clock drives the gate's polling and the countdown. Nil uses the real clock.
	Clock clock.Clock
	// Producers builds what feeds the gate. Nil uses DefaultProducers.
	Producers func(g *gate.Gate[uint32]) []Producer
}

// DefaultProducers is the web server, plus the MQTT trigger when a broker is configured.
func DefaultProducers(cfg *config.Config, logger logging.Logger) func(g *gate.Gate[uint32]) []Producer {
	return func(g *gate.Gate[uint32]) []Producer {
		producers := []Producer{web.New(cfg.Network, g, logger.Sublogger("web"))}
		if cfg.MQTT.Enabled() {
			producers = append(producers, trigger.NewMQTT(cfg.MQTT, g, logger.Sublogger("mqtt")))
		}
		return producers
	}
}

// Run blocks until a blink count arrives, then starts the co-processor and sleeps. It returns
// when ctx ends first, when a step fails, or when the sleeper returns.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config
	clk := r.Clock
	if clk == nil {
		clk = clock.New()
	}
	makeProducers := r.Producers
	if makeProducers == nil {
		makeProducers = DefaultProducers(cfg, r.Logger)
	}

	if err := playground.Run(ctx, cfg.Playground, r.Logger.Sublogger("playground")); err != nil {
		return errors.Wrap(err, "playground")
	}
	if r.Display != nil {
		if err := r.Display.Hello(ctx, cfg.Display.Text); err != nil {
			r.Logger.CWarnw(ctx, "display demo failed", "error", err)
		}
	}

	g := gate.New[uint32](gate.WithPolicy(cfg.Gate.Policy), gate.WithClock(clk))
	producers := makeProducers(g)
	started, err := startProducers(ctx, producers)
	if err != nil {
		return multierr.Combine(err, r.stopProducers(ctx, clk, started))
	}

	cycles, err := r.wait(ctx, g)
	if err != nil {
		return multierr.Combine(err, r.stopProducers(ctx, clk, started))
	}
	r.Logger.CInfow(ctx, "got blink cycles", "cycles", cycles, "overwritten", g.Overwritten())

	if err := r.countdown(ctx, clk, cfg.Shutdown.Seconds()); err != nil {
		return multierr.Combine(err, r.stopProducers(ctx, clk, started))
	}
	if err := r.stopProducers(ctx, clk, started); err != nil {
		// Sleeping is still the right thing to do; the producers go away with the process.
		r.Logger.CWarnw(ctx, "error stopping producers", "error", err)
	}

	startCfg, err := cfg.ULP.StartConfig()
	if err != nil {
		return err
	}
	return ulp.Start(ctx, r.Coprocessor, r.Sleeper, startCfg, cycles, r.Logger.Sublogger("ulp"))
}

func startProducers(ctx context.Context, producers []Producer) ([]Producer, error) {
	started := make([]Producer, 0, len(producers))
	for _, p := range producers {
		if err := p.Start(ctx); err != nil {
			return started, err
		}
		started = append(started, p)
	}
	return started, nil
}

// stopProducers stops in reverse start order, collecting every error.
func (r *Runner) stopProducers(ctx context.Context, clk clock.Clock, producers []Producer) error {
	if len(producers) == 0 {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	done := utils.SlowLogger(stopCtx, clk, "waiting for producers to stop", "producers", "all", r.Logger)
	defer done()

	var errs error
	for i := len(producers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, producers[i].Stop(stopCtx))
	}
	if errs == nil {
		r.Logger.CInfo(ctx, "Producers stopped")
	}
	return errs
}

func (r *Runner) wait(ctx context.Context, g *gate.Gate[uint32]) (uint32, error) {
	waitCtx := ctx
	if timeout := r.Config.Gate.WaitTimeout; timeout > 0 {
		var cancel func()
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.Logger.CInfow(ctx, "waiting for blink cycles", "poll_interval", r.Config.Gate.PollInterval)
	cycles, err := g.WaitForValue(waitCtx, r.Config.Gate.PollInterval, func() { r.sampleAnalogs(waitCtx) })
	if err != nil {
		return 0, errors.Wrap(err, "waiting for blink cycles")
	}
	return cycles, nil
}

// sampleAnalogs is the periodic work done while nothing has been submitted.
func (r *Runner) sampleAnalogs(ctx context.Context) {
	for _, name := range r.Board.AnalogNames() {
		analog, ok := r.Board.AnalogByName(name)
		if !ok {
			continue
		}
		value, err := analog.Read(ctx)
		if err != nil {
			r.Logger.CWarnw(ctx, "error reading analog", "analog", name, "error", err)
			continue
		}
		r.Logger.CInfow(ctx, "analog reading", "analog", name, "value", value)

		if withStats, ok := analog.(board.StatsAnalog); ok {
			if stats, err := withStats.Stats(); err == nil {
				r.Logger.CDebugw(ctx, "analog stats", "analog", name,
					"mean", stats.Mean, "median", stats.Median, "stddev", stats.StdDev, "samples", stats.Samples)
			}
		}
	}
}

func (r *Runner) countdown(ctx context.Context, clk clock.Clock, secs int) error {
	for s := 0; s < secs; s++ {
		r.Logger.CInfof(ctx, "Shutting down in %d secs", secs-s)
		timer := clk.Timer(time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
