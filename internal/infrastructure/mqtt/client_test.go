package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local Mosquitto broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "workbench-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping when none is listening.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker on 127.0.0.1:1883")
	}
	conn.Close()

	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Offline Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PrinterState", topics.PrinterState("p-1"), "workbench/printer/p-1/state"},
		{"PrinterCommand", topics.PrinterCommand("p-1"), "workbench/printer/p-1/command"},
		{"AllPrinterCommands", topics.AllPrinterCommands(), "workbench/printer/+/command"},
		{"PrinterActive", topics.PrinterActive(), "workbench/printer/active"},
		{"PrinterEvent", topics.PrinterEvent("printer.connected"), "workbench/printer/event/printer.connected"},
		{"SystemStatus", topics.SystemStatus(), "workbench/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestCommandPrinterID(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"workbench/printer/p-1/command", "p-1", true},
		{Topics{}.PrinterCommand("3f0c9e4a"), "3f0c9e4a", true},
		{"workbench/printer//command", "", false},
		{"workbench/printer/p-1/state", "", false},
		{"workbench/printer/a/b/command", "", false},
		{"workbench/printer/active", "", false},
		{"other/printer/p-1/command", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := Topics{}.CommandPrinterID(tt.topic)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("CommandPrinterID(%q) = (%q, %v), want (%q, %v)", tt.topic, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL() with TLS = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bench", Password: "secret"}

	opts := buildClientOptions(cfg)
	if opts.ClientID != "workbench-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bench" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLS config set without TLS enabled")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "workbench-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Fatalf("will not configured: enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "workbench/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != "unexpected_disconnect" || msg.ClientID != "workbench-test" {
		t.Errorf("unexpected will payload %+v", msg)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"bad qos", "workbench/x", nil, 3, ErrInvalidQoS},
		{"oversized", "workbench/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "workbench/x", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	client := &Client{}
	err := client.PublishJSON("workbench/x", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := client.Subscribe("workbench/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v", err)
	}
	if err := client.Subscribe("workbench/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}
	if err := client.Subscribe("workbench/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
	if n := len(client.subs.snapshot()); n != 0 {
		t.Errorf("%d subscriptions remembered after failures, want 0", n)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("unsubscribe empty topic: %v", err)
	}
}

// fakeMessage is the minimal pahomqtt.Message a handler reads.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ pahomqtt.Message = fakeMessage{}

func TestDeliver(t *testing.T) {
	msg := fakeMessage{topic: "workbench/printer/p-1/command", payload: []byte("connect")}

	t.Run("passes topic and payload", func(t *testing.T) {
		client := &Client{}
		var gotTopic, gotPayload string
		client.deliver(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})(nil, msg)

		if gotTopic != msg.topic || gotPayload != "connect" {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})

	t.Run("handler error is logged", func(t *testing.T) {
		client := &Client{}
		logger := &mockLogger{}
		client.SetLogger(logger)

		client.deliver(func(string, []byte) error { return errors.New("unknown printer") })(nil, msg)

		if logger.warnCount() != 1 {
			t.Errorf("warns = %d, want 1", logger.warnCount())
		}
	})

	t.Run("panic is recovered and logged", func(t *testing.T) {
		client := &Client{}
		logger := &mockLogger{}
		client.SetLogger(logger)

		client.deliver(func(string, []byte) error { panic("boom") })(nil, msg)

		if logger.errorCount() != 1 {
			t.Errorf("errors = %d, want 1", logger.errorCount())
		}
	})

	t.Run("panic without logger", func(t *testing.T) {
		client := &Client{}
		client.deliver(func(string, []byte) error { panic("boom") })(nil, msg)
	})
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Broker Tests (skipped without a local broker)
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "workbench-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestHealthCheckAfterClose(t *testing.T) {
	client := connectOrSkip(t, "workbench-test-close")
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "workbench-test-roundtrip")

	topic := Topics{}.PrinterCommand("roundtrip")
	var (
		mu       sync.Mutex
		received map[string]any
	)
	done := make(chan struct{}, 1)

	err := client.Subscribe(Topics{}.AllPrinterCommands(), 1, func(got string, payload []byte) error {
		if got != topic {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if err := json.Unmarshal(payload, &received); err != nil {
			return err
		}
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if n := len(client.subs.snapshot()); n != 1 {
		t.Errorf("%d subscriptions remembered, want 1", n)
	}

	if err := client.PublishJSON(topic, map[string]any{"action": "connect"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	mu.Lock()
	defer mu.Unlock()
	if received["action"] != "connect" {
		t.Errorf("received %v", received)
	}

	if err := client.Unsubscribe(Topics{}.AllPrinterCommands()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if n := len(client.subs.snapshot()); n != 0 {
		t.Errorf("%d subscriptions remembered after unsubscribe", n)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	client := connectOrSkip(t, "workbench-test-panic")
	logger := &mockLogger{}
	client.SetLogger(logger)

	topic := "workbench/test/panic"
	called := make(chan struct{}, 1)
	err := client.Subscribe(topic, 1, func(string, []byte) error {
		called <- struct{}{}
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topic, []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if logger.errorCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("panic was not logged")
}

type mockLogger struct {
	mu     sync.Mutex
	errors int
	warns  int
}

func (l *mockLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *mockLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}
