package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/workbench-core/internal/printer"
)

// Inbound request types.
const (
	requestSubscribe   = "subscribe"
	requestUnsubscribe = "unsubscribe"
	requestActive      = "active"
	requestPing        = "ping"
)

// activeLookupTimeout bounds the registry read behind an active frame.
const activeLookupTimeout = 5 * time.Second

// wsRequest is a client message, e.g.
//
//	{"type":"subscribe","id":"1","channels":["printer.connected"]}
type wsRequest struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleWebSocket upgrades the connection after redeeming the single-use
// ticket from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, entry.subject)
	s.hub.add(client)

	go s.writeFrames(conn, client)
	go s.readRequests(conn, client)
}

// readRequests handles client requests until the connection fails, then
// removes the client from the hub.
func (s *Server) readRequests(conn *websocket.Conn, c *wsClient) {
	defer func() {
		s.hub.remove(c)
		conn.Close()
	}()

	idle := time.Duration(s.wsCfg.PingInterval+s.wsCfg.PongTimeout) * time.Second
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(idle)) }

	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any request counts as liveness.
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		s.handleRequest(c, data)
	}
}

// writeFrames drains the client's queue and keeps the connection alive
// with pings until the client is closed.
func (s *Server) writeFrames(conn *websocket.Conn, c *wsClient) {
	ticker := time.NewTicker(time.Duration(s.wsCfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	writeWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught by caller
		return conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck // best effort
			return
		case data := <-c.send:
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleRequest(c *wsClient, data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(wsFrame{Type: frameError, Error: "invalid JSON message"})
		return
	}

	switch req.Type {
	case requestSubscribe, requestUnsubscribe:
		if err := checkChannels(req.Channels); err != nil {
			c.reply(wsFrame{Type: frameError, ID: req.ID, Error: err.Error()})
			return
		}
		subscribe := req.Type == requestSubscribe
		ack := frameUnsubscribed
		if subscribe {
			ack = frameSubscribed
		}
		now := c.setChannels(req.Channels, subscribe)
		c.reply(wsFrame{Type: ack, ID: req.ID, Channels: now})
		s.logger.Debug("websocket subscriptions changed", "subject", c.subject, "channels", now)

		// A client that starts following connection changes needs to know
		// which printer is connected right now.
		if subscribe && (c.follows(printer.EventConnected) || c.follows(printer.EventDisconnected)) {
			s.replyActive(c, req.ID)
		}
	case requestActive:
		s.replyActive(c, req.ID)
	case requestPing:
		c.reply(wsFrame{Type: framePong, ID: req.ID})
	default:
		c.reply(wsFrame{Type: frameError, ID: req.ID, Error: "unknown message type: " + req.Type})
	}
}

// replyActive sends the connected printer, or an active frame without a
// printer when none is connected.
func (s *Server) replyActive(c *wsClient, id string) {
	if s.hub.active == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), activeLookupTimeout)
	defer cancel()

	p, err := s.hub.active.GetConnected(ctx)
	if err != nil && !errors.Is(err, printer.ErrPrinterNotFound) {
		s.logger.Warn("websocket active lookup failed", "subject", c.subject, "error", err)
		c.reply(wsFrame{Type: frameError, ID: id, Error: "active printer unavailable"})
		return
	}
	c.reply(wsFrame{Type: frameActive, ID: id, At: time.Now().UTC(), Printer: p})
}
