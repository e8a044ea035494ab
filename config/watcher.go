package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/logging"
)

// watchSettle is how long the file must be quiet before it is re-read. Editors often write a
// file in several steps.
const watchSettle = 100 * time.Millisecond

// Watch re-reads the config file whenever it changes and hands each valid result to onChange,
// until ctx is done. Invalid edits are logged and skipped. The file's directory is watched so
// that editors which replace the file are noticed.
func Watch(ctx context.Context, filePath string, logger logging.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Debugw("error closing config watcher", "error", err)
		}
	}()

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "watching %s", filePath)
	}

	debounced := debounce.New(watchSettle)
	reread := func() {
		if ctx.Err() != nil {
			return
		}
		cfg, err := Read(ctx, abs, logger)
		if err != nil {
			logger.CWarnw(ctx, "ignoring invalid config change", "path", filePath, "error", err)
			return
		}
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.CWarnw(ctx, "config watcher error", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			debounced(reread)
		}
	}
}
