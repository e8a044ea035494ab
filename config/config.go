// Package config defines the demo's configuration file and how it is read and validated.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/boarddemo/components/board"
	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/ulp"
	"go.viam.com/boarddemo/utils"
)

// Config describes the whole demo.
type Config struct {
	ConfigFilePath string `json:"-"`

	// Debug turns on debug logging. It is re-read while the demo runs.
	Debug      bool             `json:"debug,omitempty"`
	Network    NetworkConfig    `json:"network"`
	Gate       GateConfig       `json:"gate"`
	Shutdown   ShutdownConfig   `json:"shutdown"`
	Board      board.Config     `json:"board"`
	ULP        ULPConfig        `json:"ulp"`
	MQTT       MQTTConfig       `json:"mqtt"`
	Playground PlaygroundConfig `json:"playground"`
	Display    DisplayConfig    `json:"display"`
	Log        LogConfig        `json:"log"`
}

// Default returns the configuration used when no file is given: a fake board with one wandering
// analog, served on DefaultBindAddress.
func Default() *Config {
	cfg := &Config{
		Board: board.Config{
			Model:   "fake",
			LEDPin:  "2",
			Analogs: []board.AnalogReaderConfig{{Name: "a0", Pin: "0"}},
		},
		Playground: PlaygroundConfig{Enabled: true},
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate() error {
	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	if err := c.Gate.Validate("gate"); err != nil {
		return err
	}
	if err := c.Shutdown.Validate("shutdown"); err != nil {
		return err
	}
	if err := c.Board.Validate("board"); err != nil {
		return err
	}
	if err := c.ULP.Validate("ulp"); err != nil {
		return err
	}
	if err := c.MQTT.Validate("mqtt"); err != nil {
		return err
	}
	if err := c.Playground.Validate("playground"); err != nil {
		return err
	}
	if err := c.Display.Validate("display"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// parseDuration parses an optional duration field. Empty strings yield `def`.
func parseDuration(path, field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, utils.NewConfigValidationError(path, errors.Wrapf(err, "error validating %s", field))
	}
	if d < 0 {
		return 0, utils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", field))
	}
	return d, nil
}

// DefaultBindAddress is the default address that will be listened on.
const DefaultBindAddress = "localhost:8080"

// NetworkConfig describes networking settings for the web server.
type NetworkConfig struct {
	// BindAddress is the address that the web server will bind to.
	BindAddress           string `json:"bind_address"`
	BindAddressDefaultSet bool   `json:"-"`

	// PostsPerSecond limits form submissions. Zero means 1.
	PostsPerSecond float64 `json:"posts_per_sec,omitempty"`
	// PostBurst is the number of submissions allowed at once. Zero means 5.
	PostBurst int `json:"post_burst,omitempty"`
	// CORSAllowedOrigins are passed to the CORS handler. Empty allows any origin.
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty"`
}

// MarshalJSON omits a defaulted bind address.
func (nc *NetworkConfig) MarshalJSON() ([]byte, error) {
	type plain NetworkConfig
	configCopy := plain(*nc)
	if configCopy.BindAddressDefaultSet {
		configCopy.BindAddress = ""
	}
	return json.Marshal(configCopy)
}

// Validate ensures all parts of the config are valid.
func (nc *NetworkConfig) Validate(path string) error {
	if nc.BindAddress == "" {
		nc.BindAddress = DefaultBindAddress
		nc.BindAddressDefaultSet = true
	}
	if _, _, err := net.SplitHostPort(nc.BindAddress); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	if nc.PostsPerSecond < 0 || nc.PostBurst < 0 {
		return utils.NewConfigValidationError(path, errors.New("post rate limits cannot be negative"))
	}
	if nc.PostsPerSecond == 0 {
		nc.PostsPerSecond = 1
	}
	if nc.PostBurst == 0 {
		nc.PostBurst = 5
	}
	return nil
}

// GateConfig configures the handoff between the web form and the main flow.
type GateConfig struct {
	PollIntervalStr string      `json:"poll_interval,omitempty"`
	Policy          gate.Policy `json:"policy,omitempty"`
	// WaitTimeoutStr bounds the whole wait. Empty or "0s" waits forever.
	WaitTimeoutStr string `json:"wait_timeout,omitempty"`

	PollInterval time.Duration `json:"-"`
	WaitTimeout  time.Duration `json:"-"`
}

// Validate ensures all parts of the config are valid.
func (gc *GateConfig) Validate(path string) error {
	var err error
	if gc.PollInterval, err = parseDuration(path, "poll_interval", gc.PollIntervalStr, gate.DefaultPollInterval); err != nil {
		return err
	}
	if gc.PollInterval == 0 {
		return utils.NewConfigValidationError(path, errors.New("poll_interval must be positive"))
	}
	if gc.WaitTimeout, err = parseDuration(path, "wait_timeout", gc.WaitTimeoutStr, 0); err != nil {
		return err
	}
	return nil
}

// DefaultCountdown is the number of seconds counted down before sleeping.
const DefaultCountdown = 3

// ShutdownConfig configures the pause between receiving cycles and sleeping.
type ShutdownConfig struct {
	// Countdown in seconds. Nil means DefaultCountdown.
	Countdown *int `json:"countdown,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (sc *ShutdownConfig) Validate(path string) error {
	if sc.Countdown == nil {
		countdown := DefaultCountdown
		sc.Countdown = &countdown
	}
	if *sc.Countdown < 0 {
		return utils.NewConfigValidationError(path, errors.New("countdown cannot be negative"))
	}
	return nil
}

// Seconds returns the validated countdown.
func (sc *ShutdownConfig) Seconds() int {
	if sc.Countdown == nil {
		return DefaultCountdown
	}
	return *sc.Countdown
}

// ULPConfig configures the co-processor program and the deep sleep.
type ULPConfig struct {
	// BinaryPath is a program image to load instead of the built in blink program.
	BinaryPath       string `json:"binary_path,omitempty"`
	CyclesAddr       uint32 `json:"cycles_addr,omitempty"`
	SleepDurationStr string `json:"sleep_duration,omitempty"`
	BlinkPeriodStr   string `json:"blink_period,omitempty"`

	SleepDuration time.Duration `json:"-"`
	BlinkPeriod   time.Duration `json:"-"`
}

// Validate ensures all parts of the config are valid.
func (uc *ULPConfig) Validate(path string) error {
	var err error
	if uc.SleepDuration, err = parseDuration(path, "sleep_duration", uc.SleepDurationStr, ulp.DefaultSleepDuration); err != nil {
		return err
	}
	if uc.BlinkPeriod, err = parseDuration(path, "blink_period", uc.BlinkPeriodStr, ulp.DefaultBlinkPeriod); err != nil {
		return err
	}
	if uc.CyclesAddr != 0 && (uc.CyclesAddr < ulp.RTCSlowMemBase || uc.CyclesAddr%4 != 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("cycles_addr %#x is not a word in RTC slow memory", uc.CyclesAddr))
	}
	if uc.BinaryPath != "" {
		if _, err := os.Stat(uc.BinaryPath); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating binary_path"))
		}
	}
	return nil
}

// StartConfig returns what ulp.Start needs, reading the configured image if there is one.
func (uc *ULPConfig) StartConfig() (ulp.StartConfig, error) {
	sc := ulp.StartConfig{CyclesAddr: uc.CyclesAddr, SleepDuration: uc.SleepDuration}
	if uc.BinaryPath == "" {
		sc.Image = ulp.BlinkProgram(ulp.DefaultBlinkCycles, uc.BlinkPeriod).Bytes()
		return sc, nil
	}
	image, err := os.ReadFile(uc.BinaryPath)
	if err != nil {
		return ulp.StartConfig{}, errors.Wrap(err, "reading ulp binary")
	}
	sc.Image = image
	return sc, nil
}

// DefaultTopicPrefix prefixes every MQTT topic when none is configured.
const DefaultTopicPrefix = "boarddemo"

// MQTTConfig configures the optional MQTT trigger. It is disabled without a broker.
type MQTTConfig struct {
	Broker      string `json:"broker,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Enabled reports whether a broker is configured.
func (mc *MQTTConfig) Enabled() bool {
	return mc.Broker != ""
}

// Validate ensures all parts of the config are valid.
func (mc *MQTTConfig) Validate(path string) error {
	if mc.TopicPrefix == "" {
		mc.TopicPrefix = DefaultTopicPrefix
	}
	if !mc.Enabled() {
		return nil
	}
	u, err := url.Parse(mc.Broker)
	if err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating broker"))
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unsupported broker scheme %q", u.Scheme))
	}
	if mc.Password != "" && mc.Username == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "username")
	}
	return nil
}

// DefaultThreads is the number of playground worker threads.
const DefaultThreads = 5

// PlaygroundConfig configures the warm-up demos run at startup.
type PlaygroundConfig struct {
	Enabled bool `json:"enabled"`
	Threads int  `json:"threads,omitempty"`
	// TCPTarget is a host:port fetched with a bare HTTP/1.0 request. Empty skips it.
	TCPTarget string `json:"tcp_target,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (pc *PlaygroundConfig) Validate(path string) error {
	if pc.Threads < 0 {
		return utils.NewConfigValidationError(path, errors.New("threads cannot be negative"))
	}
	if pc.Threads == 0 {
		pc.Threads = DefaultThreads
	}
	if pc.TCPTarget != "" {
		if _, _, err := net.SplitHostPort(pc.TCPTarget); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating tcp_target"))
		}
	}
	return nil
}

// Display defaults, matching a 0.96" SSD1306 module.
const (
	DefaultDisplayWidth  = 128
	DefaultDisplayHeight = 64
	DefaultDisplayText   = "Hello Go!"
)

// DisplayConfig configures the hello world drawn on an SSD1306 OLED over I2C at startup.
type DisplayConfig struct {
	Enabled bool `json:"enabled"`
	// I2CBus is a periph bus name such as "1" or "/dev/i2c-1". Empty opens the first bus found.
	I2CBus string `json:"i2c_bus,omitempty"`
	// ResetPin, when set, is a board GPIO pin wired to the controller's RES line.
	ResetPin string `json:"reset_pin,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (dc *DisplayConfig) Validate(path string) error {
	if dc.Width == 0 {
		dc.Width = DefaultDisplayWidth
	}
	if dc.Height == 0 {
		dc.Height = DefaultDisplayHeight
	}
	if dc.Width < 8 || dc.Width > 128 || dc.Width%8 != 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width must be a multiple of 8 up to 128, got %d", dc.Width))
	}
	if dc.Height < 8 || dc.Height > 64 || dc.Height%8 != 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be a multiple of 8 up to 64, got %d", dc.Height))
	}
	if dc.Text == "" {
		dc.Text = DefaultDisplayText
	}
	return nil
}

// LogConfig configures log output in addition to stdout.
type LogConfig struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `json:"level,omitempty"`
	// File, when set, also writes logs to this file, rotated at MaxSizeMB.
	File      string `json:"file,omitempty"`
	MaxSizeMB int    `json:"max_size_mb,omitempty"`

	ParsedLevel logging.Level `json:"-"`
}

// Validate ensures all parts of the config are valid.
func (lc *LogConfig) Validate(path string) error {
	lc.ParsedLevel = logging.INFO
	if lc.Level != "" {
		level, err := logging.LevelFromString(lc.Level)
		if err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		lc.ParsedLevel = level
	}
	if lc.MaxSizeMB < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_size_mb cannot be negative"))
	}
	if lc.File != "" && lc.MaxSizeMB == 0 {
		lc.MaxSizeMB = 10
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("board=%s bind=%s poll=%s policy=%s", c.Board.Model, c.Network.BindAddress, c.Gate.PollInterval, c.Gate.Policy)
}
