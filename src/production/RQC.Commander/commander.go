package commander

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	config "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Config"
	logger "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Logger"
	metrics "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Metrics"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

// commandQoS requests at-least-once delivery. Firmware treats repeated
// identical commands as idempotent.
const commandQoS byte = 1

// ConnectError marks a batch that failed outright because the broker
// connection could not be established. Callers distinguish it from
// per-message publish failures: the former means nothing was delivered.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return "mqtt connect: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Publisher is the command channel towards the devices. Implementations own
// a scoped broker connection per call: open, publish, close on every exit
// path. Delivery is fire-and-forget; no device acks are consumed.
type Publisher interface {
	PublishCommands(ctx context.Context, commands []rqcmodels.Command) error
	PublishTelemetry(ctx context.Context, event rqcmodels.TelemetryEvent) error
}

// CommandTopic derives the command topic for a device.
func CommandTopic(namespace, deviceCode string) string {
	return fmt.Sprintf("%s/%s/cmd", namespace, deviceCode)
}

// TelemetryTopic derives the telemetry topic for a device.
func TelemetryTopic(namespace, deviceCode string) string {
	return fmt.Sprintf("%s/%s/telemetry", namespace, deviceCode)
}

// MQTTCommander publishes commands over MQTT. Each publish call dials the
// broker, sends its messages at QoS 1 and disconnects; connections are never
// reused across cycles or requests.
type MQTTCommander struct {
	cfg       config.MQTTConfig
	namespace string
	log       *logger.Logger
}

func NewMQTTCommander(cfg config.MQTTConfig, namespace string, log *logger.Logger) *MQTTCommander {
	return &MQTTCommander{
		cfg:       cfg,
		namespace: namespace,
		log:       log.WithComponent("commander"),
	}
}

type outboundMessage struct {
	topic   string
	tag     string
	payload []byte
}

// PublishCommands delivers the batch over one scoped connection. A connect
// failure fails the whole batch; a per-message publish failure is reported
// but the remaining messages are still attempted (best-effort breadth).
func (c *MQTTCommander) PublishCommands(ctx context.Context, commands []rqcmodels.Command) error {
	if len(commands) == 0 {
		return nil
	}

	messages := make([]outboundMessage, 0, len(commands))
	for _, cmd := range commands {
		payload, err := json.Marshal(cmd.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal command for %s: %w", cmd.DeviceCode, err)
		}
		messages = append(messages, outboundMessage{
			topic:   CommandTopic(c.namespace, cmd.DeviceCode),
			tag:     commandTag(cmd.Payload),
			payload: payload,
		})
	}

	return c.publish(ctx, messages)
}

// PublishTelemetry injects a fabricated sensor reading on the device's
// telemetry topic.
func (c *MQTTCommander) PublishTelemetry(ctx context.Context, event rqcmodels.TelemetryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry event: %w", err)
	}

	return c.publish(ctx, []outboundMessage{{
		topic:   TelemetryTopic(c.namespace, event.DeviceCode),
		tag:     "telemetry",
		payload: payload,
	}})
}

func (c *MQTTCommander) publish(_ context.Context, messages []outboundMessage) error {
	client, err := c.connect()
	if err != nil {
		metrics.PublishErrors.Inc()
		return &ConnectError{Err: err}
	}
	defer client.Disconnect(250)

	var errs []error
	for _, m := range messages {
		token := client.Publish(m.topic, commandQoS, false, m.payload)
		if token.Wait() && token.Error() != nil {
			c.log.WithError(token.Error()).Error("publish failed on " + m.topic)
			metrics.PublishErrors.Inc()
			errs = append(errs, fmt.Errorf("publish %s: %w", m.topic, token.Error()))
			continue
		}
		metrics.CommandsPublished.WithLabelValues(m.tag).Inc()
		c.log.Debug("published " + m.tag + " to " + m.topic)
	}

	return errors.Join(errs...)
}

func (c *MQTTCommander) connect() (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL()).
		SetClientID(c.cfg.ClientID + "-" + uuid.NewString()[:8]).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetCleanSession(true)

	if c.cfg.BrokerUser != "" {
		opts.SetUsername(c.cfg.BrokerUser)
		opts.SetPassword(c.cfg.BrokerPass)
	}

	if c.cfg.UseTLS {
		tlsCfg, err := c.tlsConfig(c.cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect timed out after %s", c.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, err
	}

	return client, nil
}

func (c *MQTTCommander) brokerURL() string {
	scheme := "tcp"
	if c.cfg.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.cfg.BrokerHost, c.cfg.BrokerPort)
}

func (c *MQTTCommander) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

func commandTag(payload rqcmodels.CommandPayload) string {
	switch payload.(type) {
	case rqcmodels.StopCommand:
		return "stop"
	case rqcmodels.StartManualCommand:
		return "start_manual"
	case rqcmodels.SetModeCommand:
		return "set_mode"
	default:
		return "unknown"
	}
}
