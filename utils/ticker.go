package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/boarddemo/logging"
)

// SlowLogger warns periodically, with backoff, until the returned function is called or ctx ends.
// It is meant to wrap operations that usually finish quickly, e.g. a server shutdown.
func SlowLogger(ctx context.Context, clk clock.Clock, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	slowTicker := clk.Ticker(2 * time.Second)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := clk.Now()
	go func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := clk.Since(startTime).Round(time.Second).String()
				logger.CWarnw(ctx, msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(3 * time.Second)
					firstTick = false
				} else {
					slowTicker.Reset(5 * time.Second)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() { slowTicker.Stop(); cancel() }
}
