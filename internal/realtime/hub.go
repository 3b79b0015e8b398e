package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streetfoodconnect/marketplace-backend/internal/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4 * 1024
	defaultSendBuffer = 64
)

var errHubStopped = errors.New("realtime hub stopped")

// Publisher delivers an event to every subscriber of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// HubParams configures a Hub.
type HubParams struct {
	AllowedOrigins []string
	SendBuffer     int
	Metrics        *metrics.RealtimeMetrics
	Logger         *logger.Logger
}

// Hub tracks websocket clients on this instance and fans events out by topic.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	deliver    chan Event
	done       chan struct{}
	clients    map[*client]struct{}
	sendBuffer int
	connected  atomic.Int64
	metrics    *metrics.RealtimeMetrics
	logg       *logger.Logger
}

// NewHub builds a hub. Run must be started before clients connect.
func NewHub(params HubParams) *Hub {
	buffer := params.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		deliver:    make(chan Event, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		sendBuffer: buffer,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(params.AllowedOrigins),
	}
	return h
}

// Run is the hub event loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)
			h.metrics.Connected()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case event := <-h.deliver:
			h.fanOut(event)
		}
	}
}

// Publish queues event for local subscribers of topic.
func (h *Hub) Publish(ctx context.Context, topic string, event Event) error {
	event.Topic = topic
	select {
	case h.deliver <- event:
		return nil
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

// ServeWS upgrades the request and subscribes the connection to topics plus
// the caller's own session topic. Topics must already be authorized.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sess session.Session, topics []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	subscribed := make(map[string]struct{}, len(topics)+1)
	for _, topic := range topics {
		subscribed[topic] = struct{}{}
	}
	subscribed[SessionTopic(sess.UserID())] = struct{}{}

	c := &client{hub: h, conn: conn, topics: subscribed, send: make(chan []byte, h.sendBuffer)}
	if hello, err := NewEvent(EventAuthChanged, sess.Snapshot()); err == nil {
		hello.Topic = SessionTopic(sess.UserID())
		if raw, err := json.Marshal(hello); err == nil {
			c.send <- raw
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return errHubStopped
	case <-r.Context().Done():
		_ = conn.Close()
		return r.Context().Err()
	}
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) fanOut(event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		if h.logg != nil {
			h.logg.Error(context.Background(), "encode realtime event", err)
		}
		return
	}
	for c := range h.clients {
		if _, ok := c.topics[event.Topic]; !ok {
			continue
		}
		select {
		case c.send <- raw:
			h.metrics.Delivered(event.Type)
		default:
			// Slow consumer: disconnect rather than block the hub.
			h.metrics.Dropped()
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.connected.Add(-1)
	h.metrics.Disconnected()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimSpace(origin))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	topics map[string]struct{}
	send   chan []byte
}

// readPump only services control frames; subscribers never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.hub.logg != nil {
				c.hub.logg.Warn(c.hub.logg.WithField(context.Background(), "error", err.Error()), "realtime client closed unexpectedly")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
