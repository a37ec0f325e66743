package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"railwsn-sim/internal/statusline"
	"railwsn-sim/internal/telemetry"
)

// publisher is the part of the paho client the writer needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

const mqttPublishTimeout = 5 * time.Second

// MQTTWriter publishes the gateway uplink under a topic prefix:
//
//	<prefix>/status  JSON window report, retained
//	<prefix>/serial  the serial status lines of the window
//	<prefix>/events  JSON vibration events
//	<prefix>/state   JSON network counters
type MQTTWriter struct {
	client publisher
	prefix string
	qos    byte
	log    *slog.Logger
}

// NewMQTTWriter connects to broker and publishes below prefix.
func NewMQTTWriter(broker, clientID, prefix string, log *slog.Logger) (*MQTTWriter, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	return &MQTTWriter{client: client, prefix: prefix, qos: 1, log: log.With("component", "mqtt")}, nil
}

func (w *MQTTWriter) publish(topic string, retained bool, payload []byte) error {
	tok := w.client.Publish(w.prefix+"/"+topic, w.qos, retained, payload)
	if !tok.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt: publish to %s/%s timed out", w.prefix, topic)
	}
	if err := tok.Error(); err != nil {
		w.log.Warn("publish failed", "topic", topic, "err", err)
		return err
	}
	return nil
}

func (w *MQTTWriter) publishJSON(topic string, retained bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.publish(topic, retained, data)
}

// Write publishes one window as JSON and as serial status lines.
func (w *MQTTWriter) Write(row telemetry.TrackStatusRow) error {
	if err := w.publishJSON("status", true, row); err != nil {
		return err
	}
	return w.publish("serial", false, []byte(statusline.Format(row.Report())))
}

// WriteVibration publishes one vibration event.
func (w *MQTTWriter) WriteVibration(row telemetry.VibrationRow) error {
	return w.publishJSON("events", false, row)
}

// WriteState publishes network counters.
func (w *MQTTWriter) WriteState(row telemetry.NetworkStateRow) error {
	return w.publishJSON("state", false, row)
}

// Close disconnects from the broker.
func (w *MQTTWriter) Close() error {
	if c, ok := w.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
	return nil
}
