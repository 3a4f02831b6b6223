package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/avandermeer/metermirror/internal/config"
	"github.com/avandermeer/metermirror/internal/series"
)

// Publisher sends archived daily totals to an MQTT broker.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the configured broker.
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "electric_meter"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("metermirror")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, topicPrefix: topicPrefix}, nil
}

// payload is the wire shape of one daily total
type payload struct {
	Date  string  `json:"date"`
	Day   float64 `json:"day_kwh"`
	Night float64 `json:"night_kwh"`
	Total float64 `json:"total_kwh"`
}

// Publish sends one combined daily total to <prefix>/daily.
func (p *Publisher) Publish(c series.Combined) error {
	body, err := json.Marshal(payload{
		Date:  c.Date.Format("2006-01-02"),
		Day:   c.Day,
		Night: c.Night,
		Total: c.Total,
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := fmt.Sprintf("%s/daily", p.topicPrefix)
	if token := p.client.Publish(topic, 1, true, body); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
