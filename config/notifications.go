package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/infra/mqtt"
)

// NotificationsConfig selects the delivery channels.
type NotificationsConfig struct {
	// Inbox stores notifications so subjects can list them.
	Inbox *bool `json:"inbox"`
	// MQTT publishes notifications through the mqtt section's broker.
	MQTT           bool   `json:"mqtt"`
	TopicPrefix    string `json:"topic_prefix"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults enables the inbox and sets a five second timeout.
func (c *NotificationsConfig) SetDefaults() {
	if c.Inbox == nil {
		on := true
		c.Inbox = &on
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = mqtt.DefaultTopicPrefix
	}
}

// Validate requires a broker when MQTT delivery is on.
func (c NotificationsConfig) Validate(m mqtt.Config) error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("notifications.timeout_seconds must be >= 0")
	}
	if c.MQTT && m.Broker == "" {
		return fmt.Errorf("notifications.mqtt requires mqtt.broker")
	}
	return nil
}

// InboxEnabled reports whether the store-backed inbox is used.
func (c NotificationsConfig) InboxEnabled() bool { return c.Inbox == nil || *c.Inbox }

// Timeout returns the per batch delivery timeout.
func (c NotificationsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
