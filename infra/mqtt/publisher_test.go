package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/fuelq/core/model"
)

type fakePublisher struct {
	topics []string
	fail   map[string]bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, _ []byte) error {
	f.topics = append(f.topics, topic)
	if f.fail[topic] {
		return errors.New("publish failed")
	}
	return nil
}

func TestNotifierTopics(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, "/stations/")
	err := n.Notify(context.Background(), []model.Notification{
		{ID: "n1", Recipient: "u1"},
		{ID: "n2", Recipient: "S1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stations/u1/notifications", "stations/S1/notifications"}, pub.topics)
	assert.Equal(t, "fuelq/u1/notifications", NewNotifier(pub, "").Topic("u1"))
}

func TestNotifierStopsOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"fuelq/u1/notifications": true}}
	n := NewNotifier(pub, "")
	err := n.Notify(context.Background(), []model.Notification{{ID: "n1", Recipient: "u1"}, {ID: "n2", Recipient: "u2"}})
	require.Error(t, err)
	assert.Len(t, pub.topics, 1)
}

// TestNotifierMosquitto publishes through a real broker.
func TestNotifierMosquitto(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:1.6",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	got := make(chan model.Notification, 1)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("sub"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(100)
	tok = sub.Subscribe("fuelq/+/notifications", 1, func(_ paho.Client, m paho.Message) {
		var n model.Notification
		if json.Unmarshal(m.Payload(), &n) == nil {
			got <- n
		}
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	cli, err := NewPahoClient(Config{Broker: broker, ClientID: "pub", QoS: 1})
	require.NoError(t, err)
	defer cli.Disconnect()
	n := NewNotifier(cli, "")
	require.NoError(t, n.Notify(ctx, []model.Notification{{ID: "n1", Recipient: "u1", Title: "Queue announced"}}))

	select {
	case msg := <-got:
		assert.Equal(t, "Queue announced", msg.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not received")
	}
}
