package config

import (
	"context"
	"os"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/boarddemo/logging"
)

func TestWatch(t *testing.T) {
	path := writeConfig(t, `{"board": {"model": "fake", "led_pin": "2"}}`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, path, logging.NewTestLogger(t), func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// The watch is set up asynchronously, so keep rewriting until a change comes through. Writes are
	// spaced past the settle time so the re-read is not postponed indefinitely.
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	var got *Config
	for got == nil {
		select {
		case got = <-changes:
		case <-ticker.C:
			test.That(t, os.WriteFile(path, []byte(`{"debug": true, "board": {"model": "fake", "led_pin": "2"}}`), 0o600),
				test.ShouldBeNil)
		case <-deadline:
			t.Fatal("no config change observed")
		}
	}
	test.That(t, got.Debug, test.ShouldBeTrue)

	cancel()
	test.That(t, <-errCh, test.ShouldBeNil)
}
