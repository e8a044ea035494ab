package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/logging"
)

// Read reads a config from the given file, substituting environment variables such as
// ${MQTT_PASSWORD} before decoding.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "failed to process Config")
	}
	logger.CDebugw(ctx, "config read", "path", originalPath, "config", cfg.String())
	return &cfg, nil
}
