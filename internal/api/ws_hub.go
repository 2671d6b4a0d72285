package api

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/workbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// WSChannelAll subscribes a client to every printer event.
const WSChannelAll = "*"

// Outbound frame types.
const (
	frameEvent        = "event"
	frameActive       = "active"
	frameSubscribed   = "subscribed"
	frameUnsubscribed = "unsubscribed"
	framePong         = "pong"
	frameError        = "error"
)

// wsSendBuffer is the number of frames queued per client before events
// for that client are dropped.
const wsSendBuffer = 64

// wsChannels are the channels a client may subscribe to: one per event kind.
var wsChannels = map[string]struct{}{
	string(printer.EventCreated):      {},
	string(printer.EventUpdated):      {},
	string(printer.EventDeleted):      {},
	string(printer.EventConnected):    {},
	string(printer.EventDisconnected): {},
	string(printer.EventProbed):       {},
	WSChannelAll:                      {},
}

// wsFrame is every message the server writes. Event frames carry the
// printer copy from the registry event; active frames carry the connected
// printer, or no printer when none is connected.
type wsFrame struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Channel  printer.EventKind `json:"channel,omitempty"`
	At       time.Time         `json:"at,omitzero"`
	Printer  *printer.Printer  `json:"printer,omitempty"`
	Probe    *probe.Result     `json:"probe,omitempty"`
	Channels []string          `json:"channels,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ActiveSource looks up the connected printer for the snapshot a client
// receives when it starts following connection changes.
type ActiveSource interface {
	GetConnected(ctx context.Context) (*printer.Printer, error)
}

// Hub fans registry events out to WebSocket clients. It implements
// printer.EventSink; each event goes to the clients subscribed to its kind.
type Hub struct {
	logger *logging.Logger
	active ActiveSource

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	dropped atomic.Uint64
}

// NewHub creates a hub. active may be nil, in which case clients get no
// connected-printer snapshot.
func NewHub(logger *logging.Logger, active ActiveSource) *Hub {
	return &Hub{
		logger:  logger,
		active:  active,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many event frames were discarded because a client's
// send buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// PrinterEvent implements printer.EventSink.
func (h *Hub) PrinterEvent(_ context.Context, ev printer.Event) {
	data, err := json.Marshal(wsFrame{
		Type:    frameEvent,
		Channel: ev.Kind,
		At:      ev.At,
		Printer: ev.Printer,
		Probe:   ev.Probe,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", ev.Kind, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.follows(ev.Kind) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.dropped.Add(1)
			h.logger.Warn("websocket client lagging, event dropped",
				"subject", c.subject, "channel", ev.Kind)
		}
	}
	if len(targets) > 0 {
		h.logger.Debug("websocket event sent", "channel", ev.Kind, "recipients", len(targets))
	}
}

// wsClient is one upgraded connection. send is never closed; done tells
// the write pump to stop, so enqueue can never hit a closed channel.
type wsClient struct {
	hub     *Hub
	subject string
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newWSClient(hub *Hub, subject string) *wsClient {
	return &wsClient{
		hub:      hub,
		subject:  subject,
		send:     make(chan []byte, wsSendBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue queues data without blocking. It reports false when the buffer
// is full; frames for a closed client are silently discarded.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) reply(f wsFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "type", f.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *wsClient) follows(kind printer.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, all := c.channels[WSChannelAll]
	_, one := c.channels[string(kind)]
	return all || one
}

// setChannels adds or removes channels and returns the resulting
// subscription list, sorted.
func (c *wsClient) setChannels(channels []string, subscribe bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if subscribe {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// checkChannels rejects an empty list or any channel that is not an
// event kind or "*".
func checkChannels(channels []string) error {
	if len(channels) == 0 {
		return fmt.Errorf("channels is required")
	}
	for _, ch := range channels {
		if _, ok := wsChannels[ch]; !ok {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}
