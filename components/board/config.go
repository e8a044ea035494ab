package board

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/boarddemo/utils"
)

// AnalogReaderConfig describes the configuration of an analog reader on a board.
type AnalogReaderConfig struct {
	Name              string `json:"name"`
	Pin               string `json:"pin"` // channel on the ADC
	AverageOverMillis int    `json:"average_over_ms,omitempty"`
	SamplesPerSecond  int    `json:"samples_per_sec,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *AnalogReaderConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Pin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	if config.AverageOverMillis < 0 {
		return utils.NewConfigValidationError(path, errors.New("average_over_ms cannot be negative"))
	}
	if config.SamplesPerSecond < 0 {
		return utils.NewConfigValidationError(path, errors.New("samples_per_sec cannot be negative"))
	}
	return nil
}

// Config selects a board model and describes its connected parts.
type Config struct {
	Model   string               `json:"model"`
	Analogs []AnalogReaderConfig `json:"analogs,omitempty"`
	// LEDPin is the pin the co-processor blinks.
	LEDPin string `json:"led_pin"`
	// GPIOChip, when set, makes Linux boards drive pins as lines of this character device
	// (e.g. "/dev/gpiochip0") instead of through periph.io.
	GPIOChip string `json:"gpio_chip,omitempty"`
	// IIODevice is the sysfs IIO device analog channels are read from. Defaults to iio:device0.
	IIODevice string `json:"iio_device,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	if config.LEDPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "led_pin")
	}
	seen := map[string]struct{}{}
	for idx, conf := range config.Analogs {
		analogPath := fmt.Sprintf("%s.%s.%d", path, "analogs", idx)
		if err := conf.Validate(analogPath); err != nil {
			return err
		}
		if _, ok := seen[conf.Name]; ok {
			return utils.NewConfigValidationError(analogPath, errors.Errorf("duplicate analog name %q", conf.Name))
		}
		seen[conf.Name] = struct{}{}
	}
	return nil
}
