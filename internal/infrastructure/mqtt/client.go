package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
)

// Client is the Workbench connection to the broker. It publishes printer
// state, delivers printer commands to registered handlers and announces
// online/offline on the system status topic. Safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	connected atomic.Bool
	subs      subscriptionSet
	hooks     hooks
}

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler handles one message received on a subscribed topic.
// topic has wildcards expanded. A returned error is logged; the message is
// acknowledged regardless.
type MessageHandler func(topic string, payload []byte) error

// hooks holds the callbacks installed after Connect.
type hooks struct {
	mu           sync.RWMutex
	connectFn    func()
	disconnectFn func(error)
	log          Logger
}

func (h *hooks) current() (onConnect func(), onDisconnect func(error), log Logger) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectFn, h.disconnectFn, h.log
}

// Connect dials the broker and waits for the first session.
//
// A retained "offline" Last Will is registered before dialling. After
// that paho reconnects on its own with the configured backoff; every
// successful session replays subscriptions and republishes "online".
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if _, _, log := c.hooks.current(); log != nil {
			log.Warn("reconnecting to MQTT broker", "broker", brokerURL(cfg))
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := waitToken(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler runs on its own goroutine.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) onConnected() {
	c.connected.Store(true)
	c.resubscribe()
	c.announce("online", "", false)

	if fn, _, _ := c.hooks.current(); fn != nil {
		fn()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)

	if _, fn, _ := c.hooks.current(); fn != nil {
		fn(err)
	}
}

// announce publishes a retained status message. wait blocks until the
// broker acknowledges or the publish timeout passes.
func (c *Client) announce(status, reason string, wait bool) {
	payload, err := statusPayload(c.cfg.Broker.ClientID, status, reason)
	if err != nil {
		return
	}
	tok := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
	if wait {
		tok.WaitTimeout(defaultPublishTimeout)
	}
}

// Close publishes a graceful "offline" (distinct from the LWT reason) and
// disconnects. Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce("offline", "graceful_shutdown", true)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known link state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after every successful (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.hooks.mu.Lock()
	c.hooks.connectFn = fn
	c.hooks.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the link drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hooks.mu.Lock()
	c.hooks.disconnectFn = fn
	c.hooks.mu.Unlock()
}

// SetLogger sets the logger for handler errors and recovered panics.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.hooks.mu.Lock()
	c.hooks.log = logger
	c.hooks.mu.Unlock()
}
