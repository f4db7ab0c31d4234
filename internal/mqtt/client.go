// Package mqtt carries run telemetry to presentation clients and operator
// commands back to the runner.
package mqtt

import (
	"context"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/AaronLay10/gridrunner/internal/logging"
)

// Conn is the part of a broker connection the publisher and command
// subscriber use.
type Conn interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
	IsConnected() bool
}

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// Options configures a Client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// OnConnect runs after every successful (re)connect.
	OnConnect func()
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(o Options) *Client {
	broker := o.Broker
	if broker == "" {
		broker = BrokerURL()
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetKeepAlive(30 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn().Add(logging.Component("mqtt")).Add(logging.ErrorField(err)).Msg("connection lost")
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	if o.OnConnect != nil {
		onConnect := o.OnConnect
		opts.SetOnConnectHandler(func(paho.Client) { onConnect() })
	}

	return &Client{
		client: paho.NewClient(opts),
		broker: broker,
	}
}

// Connect makes one connection attempt bounded by 10s.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// ConnectWithRetry retries Connect with exponential backoff until it
// succeeds, attempts run out, or ctx is done.
func (c *Client) ConnectWithRetry(ctx context.Context, attempts int, initialDelay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  initialDelay,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		err := c.Connect()
		if err != nil {
			logging.Debug().Add(logging.Component("mqtt")).Add(logging.Str("broker", c.broker)).Add(logging.ErrorField(err)).Msg("connect attempt failed")
		}
		return struct{}{}, err
	})
	return err
}

// Publish sends payload at QoS 1.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
