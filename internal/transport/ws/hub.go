package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"driftwatch/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgSessionProgress MessageType = "session_progress"
	MsgSessionFinished MessageType = "session_finished"
	MsgDriftDetected   MessageType = "drift_detected"
)

// AllModels is the topic of subscribers that receive every model's events
const AllModels = "*"

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Model   string          `json:"model"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans orchestrator events out to dashboard subscribers by model
type Hub struct {
	conns map[string]map[*Connection]struct{} // topic -> connections
	count atomic.Int64

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// Connection represents a WebSocket subscriber
type Connection struct {
	Topic string // model name or AllModels
	Send  chan []byte
}

// NewConnection creates a subscriber for a model, or all models when
// topic is empty
func NewConnection(topic string) *Connection {
	if topic == "" {
		topic = AllModels
	}
	return &Connection{Topic: topic, Send: make(chan []byte, 256)}
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case conn := <-h.register:
			if h.conns[conn.Topic] == nil {
				h.conns[conn.Topic] = make(map[*Connection]struct{})
			}
			h.conns[conn.Topic][conn] = struct{}{}
			h.count.Add(1)
			h.log.Debug("subscriber connected", zap.String("topic", conn.Topic))

		case conn := <-h.unregister:
			if subs, ok := h.conns[conn.Topic]; ok {
				if _, ok := subs[conn]; ok {
					delete(subs, conn)
					close(conn.Send)
					h.count.Add(-1)
					h.log.Debug("subscriber disconnected", zap.String("topic", conn.Topic))
				}
				if len(subs) == 0 {
					delete(h.conns, conn.Topic)
				}
			}

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("failed to encode message", zap.Error(err))
				continue
			}
			h.deliver(msg.Model, data)
			if msg.Model != AllModels {
				h.deliver(AllModels, data)
			}

		case <-h.done:
			for _, subs := range h.conns {
				for conn := range subs {
					close(conn.Send)
				}
			}
			h.conns = make(map[string]map[*Connection]struct{})
			h.count.Store(0)
			return
		}
	}
}

func (h *Hub) deliver(topic string, data []byte) {
	for conn := range h.conns[topic] {
		select {
		case conn.Send <- data:
		default:
			// Drop message if buffer full
		}
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close disconnects every subscriber and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// Publish queues a message for the model's subscribers and the AllModels topic
func (h *Hub) Publish(modelName string, msgType MessageType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("failed to encode payload", zap.String("type", string(msgType)), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &Message{Type: msgType, Model: modelName, Payload: data}:
	case <-h.done:
	default:
		h.log.Warn("broadcast queue full, dropping message", zap.String("type", string(msgType)))
	}
}

// SessionProgress implements service.Notifier
func (h *Hub) SessionProgress(session *model.TestSession) {
	h.Publish(session.ModelName, MsgSessionProgress, session)
}

// SessionFinished implements service.Notifier
func (h *Hub) SessionFinished(session *model.TestSession) {
	h.Publish(session.ModelName, MsgSessionFinished, session)
}

// DriftDetected implements service.Notifier
func (h *Hub) DriftDetected(event *model.ChangeEvent) {
	h.Publish(event.ModelName, MsgDriftDetected, event)
}
