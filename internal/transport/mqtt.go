package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tempguard-device/internal/reading"
)

var ErrNotConnected = errors.New("mqtt client not connected")

type MQTTOptions struct {
	Broker             string
	Port               int
	TLS                bool
	InsecureSkipVerify bool
	ClientID           string
	Username           string
	Password           string
	// Resolver looks up the broker hostname. Nil uses the system resolver.
	Resolver *net.Resolver

	// RetryDelay is the fixed pause between connect attempts.
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	KeepAlive      time.Duration
}

// MQTTClient holds one persistent broker session. paho's own reconnect logic
// is off; EnsureConnected is the only path back to a live session.
type MQTTClient struct {
	client    mqtt.Client
	opts      MQTTOptions
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTTClient(o MQTTOptions, logger *slog.Logger) *MQTTClient {
	if o.RetryDelay <= 0 {
		o.RetryDelay = 3 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 15 * time.Second
	}

	c := &MQTTClient{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.brokerURL())
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	if o.TLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: o.InsecureSkipVerify})
		if o.InsecureSkipVerify {
			logger.Warn("tls certificate validation disabled", "broker", o.Broker)
		}
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetDialer(&net.Dialer{Timeout: o.ConnectTimeout, Resolver: o.Resolver})

	opts.SetKeepAlive(o.KeepAlive)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port, "client_id", o.ClientID)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

func (o MQTTOptions) brokerURL() string {
	scheme := "tcp"
	if o.TLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Broker, o.Port)
}

func (c *MQTTClient) Name() string { return "mqtt" }

// EnsureConnected retries the broker handshake every RetryDelay until it
// succeeds. It returns early only when ctx is done or the client is stopped.
func (c *MQTTClient) EnsureConnected(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if c.IsConnected() {
			return nil
		}

		err := c.connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.stopped() {
			return err
		}

		c.logger.Warn("mqtt connect failed, retrying",
			"broker", c.opts.Broker,
			"attempt", attempt,
			"retry_in", c.opts.RetryDelay,
			"error", err,
		)
		if err := sleep(ctx, c.opts.RetryDelay); err != nil {
			return err
		}
	}
}

func (c *MQTTClient) connect(ctx context.Context) error {
	if c.stopped() {
		return fmt.Errorf("client stopped")
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// The OnConnect handler may not have run yet.
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Service reconciles our view of the session with paho's. paho runs
// keep-alive pings on its own goroutine.
func (c *MQTTClient) Service() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected && !c.client.IsConnectionOpen() {
		c.connected = false
		c.logger.Warn("mqtt session closed")
	}
}

// Send publishes r with the retain flag set. The publish is fire-and-forget;
// the short wait only surfaces write failures for the log.
func (c *MQTTClient) Send(_ context.Context, r reading.Reading) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	payload, err := r.Payload()
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	topic := reading.Topic(r.DeviceID)

	token := c.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		c.logger.Warn("mqtt publish not confirmed", "topic", topic, "timeout", c.opts.PublishTimeout)
		return nil
	}
	if err := token.Error(); err != nil {
		c.logger.Error("failed to publish reading", "topic", topic, "error", err)
		return fmt.Errorf("publish reading: %w", err)
	}

	c.logger.Info("published reading", "topic", topic, "payload", string(payload))
	return nil
}

func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnectionOpen()
}

// Disconnect stops the client and closes the session. Safe to call more than
// once; EnsureConnected fails after it.
func (c *MQTTClient) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *MQTTClient) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
