// Package pinwrappers wraps board analogs with background sampling and smoothing.
package pinwrappers

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/utils"
)

var errStopReading = errors.New("stop reading")

// ErrNoSamples is returned by Stats before the first successful read.
var ErrNoSamples = errors.New("no analog samples yet")

// An AnalogSmoother smooths the readings out from an underlying reader.
type AnalogSmoother struct {
	Raw               board.Analog
	AverageOverMillis int
	SamplesPerSecond  int
	data              *utils.RollingAverage
	lastData          atomic.Int64
	haveData          atomic.Bool
	lastError         atomic.Error
	logger            logging.Logger
	workers           *utils.StoppableWorkers
}

// SmoothAnalogReader wraps the given reader in a smoother and starts sampling.
func SmoothAnalogReader(r board.Analog, c board.AnalogReaderConfig, logger logging.Logger) *AnalogSmoother {
	smoother := &AnalogSmoother{
		Raw:               r,
		AverageOverMillis: c.AverageOverMillis,
		SamplesPerSecond:  c.SamplesPerSecond,
		logger:            logger,
	}
	if smoother.SamplesPerSecond <= 0 {
		logger.Debug("Can't read nonpositive samples per second; defaulting to 1 instead")
		smoother.SamplesPerSecond = 1
	}
	smoother.Start()
	return smoother
}

// Close stops the smoothing routine.
func (as *AnalogSmoother) Close(ctx context.Context) error {
	as.workers.Stop()
	return nil
}

// Read returns the smoothed out reading, along with the error of the most recent sample.
func (as *AnalogSmoother) Read(ctx context.Context) (int, error) {
	if as.data == nil {
		return int(as.lastData.Load()), as.lastError.Load()
	}
	return as.data.Average(), as.lastError.Load()
}

// Stats summarizes the samples in the averaging window. Without a window it reports the last
// sample alone.
func (as *AnalogSmoother) Stats() (board.AnalogStats, error) {
	if !as.haveData.Load() {
		return board.AnalogStats{}, ErrNoSamples
	}
	var samples []float64
	if as.data != nil {
		samples = as.data.Samples()
	} else {
		samples = []float64{float64(as.lastData.Load())}
	}

	mean, err := stats.Mean(samples)
	if err != nil {
		return board.AnalogStats{}, err
	}
	median, err := stats.Median(samples)
	if err != nil {
		return board.AnalogStats{}, err
	}
	stddev, err := stats.StandardDeviation(samples)
	if err != nil {
		return board.AnalogStats{}, err
	}
	return board.AnalogStats{Samples: len(samples), Mean: mean, Median: median, StdDev: stddev}, nil
}

// Start begins the smoothing routine that reads from the underlying analog reader.
func (as *AnalogSmoother) Start() {
	// AverageOverMillis 10, SamplesPerSecond 1000 -> 10 samples.
	// AverageOverMillis 2000, SamplesPerSecond 2 -> 4 samples.
	numSamples := (as.SamplesPerSecond * as.AverageOverMillis) / 1000
	nanosBetween := 1e9 / as.SamplesPerSecond
	if numSamples >= 1 {
		as.data = utils.NewRollingAverage(numSamples)
	} else {
		as.logger.Debug("Too few samples to smooth over; defaulting to raw data.")
		as.data = nil
	}

	as.workers = utils.NewStoppableWorkers(context.Background(), func(ctx context.Context) {
		consecutiveErrors := 0
		var lastError error

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			start := time.Now()
			reading, err := as.Raw.Read(ctx)
			as.lastError.Store(err)
			if err == nil {
				as.lastData.Store(int64(reading))
				as.haveData.Store(true)
				if as.data != nil {
					as.data.Add(reading)
				}
				consecutiveErrors = 0
			} else {
				if errors.Is(err, errStopReading) {
					return
				}
				if lastError != nil && err.Error() == lastError.Error() {
					consecutiveErrors++
				} else {
					as.logger.CInfow(ctx, "error reading analog", "error", err)
					consecutiveErrors = 0
				}
				// Only remind us of a persistent problem every 10 seconds.
				if consecutiveErrors == (as.SamplesPerSecond * 10) {
					as.logger.CErrorw(ctx, "unable to read analog for 10 seconds", "error", err)
					consecutiveErrors = 0
				}
			}
			lastError = err

			toSleep := time.Duration(int64(nanosBetween) - time.Since(start).Nanoseconds())
			if !goutils.SelectContextOrWait(ctx, toSleep) {
				return
			}
		}
	})
}
