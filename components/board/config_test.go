package board

import (
	"testing"

	"go.viam.com/test"
)

func TestConfigValidate(t *testing.T) {
	conf := Config{}
	err := conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"model" is required`)

	conf.Model = "fake"
	err = conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"led_pin" is required`)

	conf.LEDPin = "2"
	test.That(t, conf.Validate("board"), test.ShouldBeNil)

	conf.Analogs = []AnalogReaderConfig{{}}
	err = conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `board.analogs.0`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"name" is required`)

	conf.Analogs = []AnalogReaderConfig{{Name: "a"}}
	err = conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"pin" is required`)

	conf.Analogs = []AnalogReaderConfig{{Name: "a", Pin: "0", SamplesPerSecond: -1}}
	err = conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "samples_per_sec")

	conf.Analogs = []AnalogReaderConfig{{Name: "a", Pin: "0"}, {Name: "a", Pin: "1"}}
	err = conf.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate analog name")

	conf.Analogs = []AnalogReaderConfig{{Name: "a", Pin: "0"}, {Name: "b", Pin: "1", AverageOverMillis: 10}}
	test.That(t, conf.Validate("board"), test.ShouldBeNil)
}
