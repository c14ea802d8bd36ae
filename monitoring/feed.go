package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// MessageType identifies a feed message.
type MessageType string

const (
	MessageSnapshot   MessageType = "snapshot"
	MessagePrediction MessageType = "prediction"
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// PredictionEvent is published for every served prediction.
type PredictionEvent struct {
	PredictionID string             `json:"prediction_id"`
	RequestID    string             `json:"request_id,omitempty"`
	Source       string             `json:"source"`
	Label        string             `json:"label"`
	ClassCode    int                `json:"class_code"`
	Features     map[string]float64 `json:"features"`
	Timestamp    time.Time          `json:"timestamp"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// Feed fans prediction events out to websocket clients and remembers the
// most recent ones for clients that connect later.
type Feed struct {
	recent     *lru.Cache[string, PredictionEvent]
	clients    map[*client]bool
	broadcast  chan PredictionEvent
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewFeed(recentSize int, allowedOrigins []string, logger *zap.Logger) (*Feed, error) {
	recent, err := lru.New[string, PredictionEvent](recentSize)
	if err != nil {
		return nil, err
	}
	return &Feed{
		recent:     recent,
		clients:    make(map[*client]bool),
		broadcast:  make(chan PredictionEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}, nil
}

// Run owns the client set. It returns when ctx is done.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case c := <-f.register:
			snapshot, err := encode(MessageSnapshot, f.Recent())
			if err == nil {
				c.send <- snapshot
			}
			f.clients[c] = true
			f.logger.Debug("feed client connected", zap.String("client", c.clientID), zap.Int("clients", len(f.clients)))

		case c := <-f.unregister:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			f.logger.Debug("feed client disconnected", zap.String("client", c.clientID), zap.Int("clients", len(f.clients)))

		case event := <-f.broadcast:
			f.recent.Add(event.PredictionID, event)
			message, err := encode(MessagePrediction, event)
			if err != nil {
				f.logger.Error("encode feed message", zap.Error(err))
				continue
			}
			for c := range f.clients {
				select {
				case c.send <- message:
				default:
					// slow client
					close(c.send)
					delete(f.clients, c)
				}
			}

		case <-ctx.Done():
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			return
		}
	}
}

// Publish queues an event. It never blocks the caller.
func (f *Feed) Publish(event PredictionEvent) {
	select {
	case f.broadcast <- event:
	default:
		f.logger.Warn("feed queue full, dropping event", zap.String("prediction_id", event.PredictionID))
	}
}

// Recent returns the remembered events, oldest first.
func (f *Feed) Recent() []PredictionEvent {
	keys := f.recent.Keys()
	events := make([]PredictionEvent, 0, len(keys))
	for _, key := range keys {
		if event, ok := f.recent.Peek(key); ok {
			events = append(events, event)
		}
	}
	return events
}

// ServeHTTP upgrades the request and streams events to it.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:     conn,
		send:     make(chan []byte, 64),
		clientID: uuid.NewString(),
	}
	select {
	case f.register <- c:
	case <-f.done:
		conn.Close()
		return
	}

	go c.writePump(f.logger)
	go c.readPump(f)
}

func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("client", c.clientID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; the feed is one-way.
func (c *client) readPump(f *Feed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.done:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("websocket closed", zap.String("client", c.clientID), zap.Error(err))
			}
			return
		}
	}
}

func encode(t MessageType, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: t, Timestamp: time.Now(), Data: data})
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
