// Package board defines the pins and analog inputs the demo reads and drives, and a registry of
// board models that provide them.
package board

import (
	"context"
)

// An Analog is an analog input. Read returns the raw converted value.
type Analog interface {
	Read(ctx context.Context) (int, error)
}

// A GPIOPin is a general purpose digital pin.
type GPIOPin interface {
	Set(ctx context.Context, high bool) error
	Get(ctx context.Context) (bool, error)
}

// A Board exposes named analogs and GPIO pins.
type Board interface {
	// AnalogByName returns the configured analog with the given name.
	AnalogByName(name string) (Analog, bool)
	// GPIOPinByName returns the pin with the given hardware name.
	GPIOPinByName(name string) (GPIOPin, error)
	// AnalogNames lists configured analogs, sorted.
	AnalogNames() []string
	// Close stops background sampling and releases pins.
	Close(ctx context.Context) error
}

// AnalogStats summarizes the samples an Analog currently holds.
type AnalogStats struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stddev"`
}

// A StatsAnalog is an Analog that can summarize its recent samples.
type StatsAnalog interface {
	Analog
	Stats() (AnalogStats, error)
}
