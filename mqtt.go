package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// UplinkMessage is the JSON payload accepted on the uplink topic
type UplinkMessage struct {
	Payload string `json:"payload"`
}

// UplinkResult is published on the result topic for every uplink message
type UplinkResult struct {
	Payload      string `json:"payload"`
	Acknowledged bool   `json:"acknowledged"`
	Error        string `json:"error,omitempty"`
}

// Bridge forwards payloads received over MQTT to the modem and publishes
// the outcome of each transmission
type Bridge struct {
	config  MQTTConfig
	device  Device
	metrics *Metrics
	logger  *slog.Logger

	client  mqtt.Client
	publish func(topic string, payload []byte) error
}

func NewBridge(config MQTTConfig, device Device, metrics *Metrics, logger *slog.Logger) *Bridge {
	return &Bridge{
		config:  config,
		device:  device,
		metrics: metrics,
		logger:  logger,
	}
}

// Connect dials the broker and subscribes to the uplink topic. Messages are
// handled until ctx is cancelled; the subscription is restored on reconnect.
func (b *Bridge) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.config.Broker)
	opts.SetClientID(b.config.ClientID)
	if b.config.Username != "" {
		opts.SetUsername(b.config.Username)
		opts.SetPassword(b.config.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.logger.Info("MQTT connected, subscribing", "topic", b.config.UplinkTopic)
		token := c.Subscribe(b.config.UplinkTopic, 1, func(_ mqtt.Client, m mqtt.Message) {
			b.onMessage(ctx, m.Payload())
		})
		if token.Wait() && token.Error() != nil {
			b.logger.Error("MQTT subscribe failed", "topic", b.config.UplinkTopic, "error", token.Error())
		}
	})

	b.client = mqtt.NewClient(opts)
	b.publish = func(topic string, payload []byte) error {
		token := b.client.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	}

	token := b.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("connect to %s: timeout", b.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", b.config.Broker, err)
	}
	return nil
}

// Disconnect closes the broker connection, if any
func (b *Bridge) Disconnect() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) onMessage(ctx context.Context, data []byte) {
	result := b.handleUplink(ctx, data)

	out, err := json.Marshal(result)
	if err != nil {
		b.logger.Error("Failed to encode uplink result", "error", err)
		return
	}
	if err := b.publish(b.config.ResultTopic, out); err != nil {
		b.logger.Error("MQTT publish failed", "topic", b.config.ResultTopic, "error", err)
	}
}

// handleUplink decodes one uplink message and sends it to the modem
func (b *Bridge) handleUplink(ctx context.Context, data []byte) UplinkResult {
	var msg UplinkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("MQTT bad payload", "error", err)
		return UplinkResult{Error: "invalid JSON: " + err.Error()}
	}

	result := UplinkResult{Payload: msg.Payload}
	if err := validatePayload(msg.Payload); err != nil {
		result.Error = err.Error()
		return result
	}

	acked, err := b.device.SendPayload(ctx, msg.Payload)
	b.metrics.ObserveUplink(acked, err)
	result.Acknowledged = acked
	if err != nil {
		b.logger.Error("Failed to send payload", "error", err, "payload", msg.Payload)
		result.Error = err.Error()
	}
	return result
}
