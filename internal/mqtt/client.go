// Package mqtt publishes wizard announcements to an MQTT broker.
package mqtt

import (
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultBrokerURL is used when neither config nor MQTT_URL set a broker.
const DefaultBrokerURL = "tcp://localhost:1883"

const opTimeout = 10 * time.Second

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	broker string
	log    *zap.Logger
	mu     sync.Mutex
}

// BrokerURL returns broker if set, then MQTT_URL, then the default.
func BrokerURL(broker string) string {
	if broker != "" {
		return broker
	}
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return DefaultBrokerURL
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(broker, clientID string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	broker = BrokerURL(broker)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", zap.Error(err))
		})

	return &Client{
		client: paho.NewClient(opts),
		broker: broker,
		log:    log,
	}
}

// Broker returns the broker URL the client uses.
func (c *Client) Broker() string {
	return c.broker
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "connect"}
	}
	if err := token.Error(); err != nil {
		return err
	}
	c.log.Info("mqtt connected", zap.String("broker", c.broker))
	return nil
}

// Publish sends payload to topic at QoS 1. Retained messages stay on the
// broker for late subscribers.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// TimeoutError indicates a broker operation did not finish in time.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	if e.Topic == "" {
		return "mqtt " + e.Op + " timeout"
	}
	return "mqtt " + e.Op + " timeout: " + e.Topic
}
