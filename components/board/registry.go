package board

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/boarddemo/logging"
)

// A Constructor builds a board of one model from its config.
type Constructor func(ctx context.Context, cfg Config, logger logging.Logger) (Board, error)

var (
	registryMu    sync.RWMutex
	boardRegistry = map[string]Constructor{}
)

// RegisterBoard makes a model available to NewBoard. It panics if the model is registered twice.
func RegisterBoard(model string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := boardRegistry[model]; old {
		panic(errors.Errorf("board model [%s] already registered", model))
	}
	boardRegistry[model] = ctor
}

// NewBoard constructs a board of the configured model.
func NewBoard(ctx context.Context, cfg Config, logger logging.Logger) (Board, error) {
	registryMu.RLock()
	ctor, have := boardRegistry[cfg.Model]
	registryMu.RUnlock()
	if !have {
		return nil, errors.Errorf("unknown board model: %v", cfg.Model)
	}
	return ctor(ctx, cfg, logger.Sublogger(cfg.Model))
}

// RegisteredModels lists the registered model names, sorted.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	models := make([]string, 0, len(boardRegistry))
	for model := range boardRegistry {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
