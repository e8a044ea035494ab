// Package trigger delivers blink cycle counts to the gate from an MQTT broker, as an alternative
// to the web form.
package trigger

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
)

const (
	availableOnline  = "online"
	availableOffline = "offline"

	disconnectQuiesceMillis = 250
	// tokenTimeout bounds the wait for a broker acknowledgement outside of Start and Stop.
	tokenTimeout = 5 * time.Second
)

// CyclesTopic is where cycle counts are received.
func CyclesTopic(prefix string) string {
	return prefix + "/ulp/cycles"
}

// StateTopic is where the gate state is published after each accepted count.
func StateTopic(prefix string) string {
	return prefix + "/ulp/state"
}

// AvailabilityTopic carries online/offline, with offline set as the last will.
func AvailabilityTopic(prefix string) string {
	return prefix + "/status"
}

// ParseCycles parses a message payload as a uint32 cycle count.
func ParseCycles(payload []byte) (uint32, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, errors.New("empty cycles payload")
	}
	cycles, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid cycles payload %q", text)
	}
	return uint32(cycles), nil
}

// StateMessage is published retained on StateTopic.
type StateMessage struct {
	State       gate.State `json:"state"`
	Cycles      uint32     `json:"cycles"`
	Overwritten int64      `json:"overwritten"`
}

// publisher is the part of mqtt.Client used after connecting.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// connectedClient is the part of mqtt.Client used when a connection comes up.
type connectedClient interface {
	publisher
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTT subscribes to CyclesTopic and sets the gate with every valid count.
type MQTT struct {
	cfg    config.MQTTConfig
	gate   *gate.Gate[uint32]
	logger logging.Logger

	mu     sync.Mutex
	client mqtt.Client
	pub    publisher
}

// NewMQTT returns a trigger for the configured broker. It does not connect until Start.
func NewMQTT(cfg config.MQTTConfig, g *gate.Gate[uint32], logger logging.Logger) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "boarddemo-" + uuid.NewString()[:8]
	}
	return &MQTT{cfg: cfg, gate: g, logger: logger}
}

func (m *MQTT) clientOptions() *mqtt.ClientOptions {
	availTopic := AvailabilityTopic(m.cfg.TopicPrefix)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetWill(availTopic, availableOffline, 1, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		m.onConnect(c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warnw("lost MQTT connection", "error", err)
	})
	return opts
}

// onConnect runs on every (re)connect, in its own goroutine.
func (m *MQTT) onConnect(c connectedClient) {
	m.logger.Infow("connected to MQTT", "broker", m.cfg.Broker)
	availTopic := AvailabilityTopic(m.cfg.TopicPrefix)
	m.checkToken(c.Publish(availTopic, 1, true, availableOnline), "error publishing availability", "topic", availTopic)
	// Subscriptions do not survive a reconnect with a clean session.
	cyclesTopic := CyclesTopic(m.cfg.TopicPrefix)
	m.checkToken(c.Subscribe(cyclesTopic, 1, m.handleCycles), "error subscribing", "topic", cyclesTopic)
}

// checkToken waits up to tokenTimeout for token and logs msg if it failed or never completed.
func (m *MQTT) checkToken(token mqtt.Token, msg string, keysAndValues ...interface{}) {
	if !token.WaitTimeout(tokenTimeout) {
		m.logger.Warnw(msg, append(keysAndValues, "error", "timed out waiting for broker")...)
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warnw(msg, append(keysAndValues, "error", err)...)
	}
}

// Start connects to the broker and subscribes. It gives up when ctx is done.
func (m *MQTT) Start(ctx context.Context) error {
	client := mqtt.NewClient(m.clientOptions())
	if err := waitToken(ctx, client.Connect()); err != nil {
		return errors.Wrapf(err, "connecting to MQTT broker %s", m.cfg.Broker)
	}

	m.mu.Lock()
	m.client = client
	m.pub = client
	m.mu.Unlock()
	m.logger.Infow("waiting for cycles", "topic", CyclesTopic(m.cfg.TopicPrefix))
	return nil
}

// Stop marks the demo offline and disconnects.
func (m *MQTT) Stop(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client == nil {
		return nil
	}

	err := waitToken(ctx, client.Publish(AvailabilityTopic(m.cfg.TopicPrefix), 1, true, availableOffline))
	client.Disconnect(disconnectQuiesceMillis)
	return err
}

func (m *MQTT) handleCycles(_ mqtt.Client, msg mqtt.Message) {
	// A retained count is from an earlier run.
	if msg.Retained() {
		return
	}
	cycles, err := ParseCycles(msg.Payload())
	if err != nil {
		m.logger.Warnw("ignoring cycles message", "topic", msg.Topic(), "error", err)
		return
	}
	if err := m.gate.Set(cycles); err != nil {
		m.logger.Warnw("cycles not accepted", "cycles", cycles, "error", err)
		return
	}
	m.logger.Infow("received ulp cycles", "cycles", cycles, "source", "mqtt")
	m.publishState(cycles)
}

func (m *MQTT) publishState(cycles uint32) {
	m.mu.Lock()
	pub := m.pub
	m.mu.Unlock()
	if pub == nil {
		return
	}

	payload, err := json.Marshal(StateMessage{
		State:       m.gate.State(),
		Cycles:      cycles,
		Overwritten: m.gate.Overwritten(),
	})
	if err != nil {
		m.logger.Errorw("error encoding state", "error", err)
		return
	}
	stateTopic := StateTopic(m.cfg.TopicPrefix)
	m.checkToken(pub.Publish(stateTopic, 1, true, payload), "error publishing state", "topic", stateTopic)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
