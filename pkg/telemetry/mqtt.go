// Package telemetry publishes controller reports to an MQTT broker and
// accepts the operator enable override from it.
package telemetry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/link"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/sirupsen/logrus"
)

const (
	// EnableTopic is the command topic below the prefix.
	EnableTopic = "enable/set"
	// EnableStateTopic echoes the applied override.
	EnableStateTopic = "enable"

	connectTimeout = 5 * time.Second
)

// MQTT implements device.Telemetry over a paho client. Connection steps
// are driven by a link.Machine: connecting is initialization, subscribing
// to the command topic is steering.
type MQTT struct {
	client paho.Client
	prefix string
	flags  *thermostat.Flags
	link   *link.Machine
}

var _ device.Telemetry = (*MQTT)(nil)

// New creates an unconnected client for cfg.MQTT. Call Start to connect.
func New(cfg *config.MQTTConfig, flags *thermostat.Flags) (*MQTT, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	m := newMQTT(nil, cfg.TopicPrefix, flags)
	opts.SetConnectionLostHandler(m.connectionLost)
	m.client = paho.NewClient(opts)
	return m, nil
}

func newMQTT(client paho.Client, prefix string, flags *thermostat.Flags) *MQTT {
	if flags == nil {
		flags = thermostat.NewFlags()
	}
	m := &MQTT{
		client: client,
		prefix: prefix,
		flags:  flags,
	}
	m.link = link.New(m, flags)
	return m
}

// ClientOptions builds paho options from the broker URL. User info in the
// URL becomes the credentials. Reconnects are left to the link machine.
func ClientOptions(cfg *config.MQTTConfig) (*paho.ClientOptions, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url %q: %w", cfg.Broker, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid broker url %q: missing host", cfg.Broker)
	}

	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetClientID(ClientID(cfg.ClientID))
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	return opts, nil
}

// ClientID returns id, or a stable per-machine id when id is empty.
func ClientID(id string) string {
	if id != "" {
		return id
	}
	mid, err := machineid.ProtectedID("warmer")
	if err != nil {
		logrus.Warnf("Unable to read machine id: %v", err)
		return "warmer"
	}
	if len(mid) > 12 {
		mid = mid[:12]
	}
	return "warmer-" + mid
}

// Start begins connecting in the background.
func (m *MQTT) Start() {
	m.link.Handle(link.Startup)
}

// Link exposes the connection state machine.
func (m *MQTT) Link() *link.Machine { return m.link }

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	m.flags.SetConnected(false)
	return nil
}

// Commission implements link.Commissioner.
func (m *MQTT) Commission(step link.Step) {
	switch step {
	case link.Initialize:
		go m.await(m.client.Connect(), link.StartedNew, link.StartFailed, "connect")
	case link.Steer:
		topic := m.prefix + EnableTopic
		go m.await(m.client.Subscribe(topic, 0, m.onEnable), link.Steered, link.SteerFailed, "subscribe "+topic)
	}
}

func (m *MQTT) await(token paho.Token, ok, failed link.Event, what string) {
	if !token.WaitTimeout(2*connectTimeout) || token.Error() != nil {
		logrus.Warnf("MQTT %s failed: %v", what, token.Error())
		m.link.Handle(failed)
		return
	}
	m.link.Handle(ok)
}

func (m *MQTT) connectionLost(_ paho.Client, err error) {
	logrus.Warnf("MQTT connection lost: %v", err)
	m.link.Handle(link.Lost)
}

// ReportNumeric publishes v with two decimals.
func (m *MQTT) ReportNumeric(channel string, v float32) error {
	return m.publish(channel, fmt.Sprintf("%.2f", v), false)
}

// ReportBinary publishes ON or OFF.
func (m *MQTT) ReportBinary(channel string, v bool) error {
	return m.publish(channel, onOff(v), false)
}

// publish is fire and forget; delivery tokens are not awaited.
func (m *MQTT) publish(channel, payload string, retained bool) error {
	if !m.client.IsConnectionOpen() {
		return device.ErrTelemetryUnavailable
	}
	m.client.Publish(m.prefix+channel, 0, retained, payload)
	return nil
}

func (m *MQTT) onEnable(_ paho.Client, msg paho.Message) {
	enabled, err := ParseSwitch(string(msg.Payload()))
	if err != nil {
		logrus.Warnf("Ignoring %s: %v", msg.Topic(), err)
		return
	}
	m.flags.SetEnabled(enabled)
	logrus.Infof("Heater %s by remote command", map[bool]string{true: "enabled", false: "disabled"}[enabled])
	if err := m.publish(EnableStateTopic, onOff(enabled), true); err != nil {
		logrus.Debugf("Enable state not echoed: %v", err)
	}
}

// ParseSwitch accepts ON/OFF, 1/0 and true/false in any case.
func ParseSwitch(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "1", "TRUE":
		return true, nil
	case "OFF", "0", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized switch value %q", s)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
