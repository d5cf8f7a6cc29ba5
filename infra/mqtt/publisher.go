package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/fuelq/core/model"
)

// DefaultTopicPrefix roots notification topics when none is configured.
const DefaultTopicPrefix = "fuelq"

// publisher is the subset of PahoClient used to deliver notifications.
type publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Notifier publishes each notification on
// <prefix>/<recipient>/notifications.
type Notifier struct {
	pub    publisher
	prefix string
}

// NewNotifier wraps a connected client.
func NewNotifier(pub publisher, prefix string) *Notifier {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Notifier{pub: pub, prefix: prefix}
}

// Topic returns the topic notifications for recipient are published on.
func (n *Notifier) Topic(recipient string) string {
	return fmt.Sprintf("%s/%s/notifications", n.prefix, recipient)
}

func (n *Notifier) Name() string { return "mqtt" }

// Notify publishes every notification and stops at the first failure.
func (n *Notifier) Notify(ctx context.Context, ns []model.Notification) error {
	for _, msg := range ns {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := n.pub.Publish(ctx, n.Topic(msg.Recipient), payload); err != nil {
			return fmt.Errorf("publish %s: %w", msg.ID, err)
		}
	}
	return nil
}
