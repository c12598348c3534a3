package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const sendBufferSize = 256

var (
	// ErrBufferFull is returned when a connection's send queue is full.
	ErrBufferFull = errors.New("send buffer full")

	// ErrNoRecipients is returned when a target has no open connection.
	ErrNoRecipients = errors.New("no connected recipients")
)

// Connection is one client socket.
type Connection struct {
	ID     string
	Conn   *websocket.Conn
	logger zerolog.Logger

	send   chan []byte
	room   string
	closed bool

	writeMu sync.Mutex
}

// Hub indexes open connections by id and by the logical session id they
// registered. A connection is in at most one room.
type Hub struct {
	connections map[string]*Connection
	rooms       map[string]map[string]*Connection
	mu          sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]*Connection),
	}
}

// NewConnection wraps ws with a fresh connection id. It is not reachable
// until Register.
func (h *Hub) NewConnection(ws *websocket.Conn, logger zerolog.Logger) *Connection {
	id := uuid.New().String()
	return &Connection{
		ID:     id,
		Conn:   ws,
		logger: logger.With().Str("connection_id", id).Logger(),
		send:   make(chan []byte, sendBufferSize),
	}
}

// Register makes conn addressable by id.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID] = conn
}

// Unregister removes conn from the hub and its room and closes its send
// queue. It reports whether conn was registered.
func (h *Hub) Unregister(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return false
	}
	delete(h.connections, conn.ID)
	h.leaveLocked(conn)
	if !conn.closed {
		conn.closed = true
		close(conn.send)
	}
	return true
}

// Join moves conn into room, leaving any room it was in.
func (h *Hub) Join(conn *Connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.closed || room == "" || conn.room == room {
		return
	}
	h.leaveLocked(conn)

	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Connection)
		h.rooms[room] = members
	}
	members[conn.ID] = conn
	conn.room = room
}

func (h *Hub) leaveLocked(conn *Connection) {
	if conn.room == "" {
		return
	}
	if members := h.rooms[conn.room]; members != nil {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(h.rooms, conn.room)
		}
	}
	conn.room = ""
}

// EmitToSession sends an event to every connection in the room named by
// logicalID.
func (h *Hub) EmitToSession(logicalID, event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[logicalID]
	if len(members) == 0 {
		return ErrNoRecipients
	}

	var sendErr error
	for _, conn := range members {
		if err := conn.enqueue(data); err != nil {
			conn.logger.Warn().Err(err).Str("event", event).Msg("Dropped outbound message")
			sendErr = err
		}
	}
	return sendErr
}

// EmitToConnection sends an event to a single connection.
func (h *Hub) EmitToConnection(connectionID, event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.connections[connectionID]
	if !ok {
		return ErrNoRecipients
	}
	return conn.enqueue(data)
}

// CloseAll closes every open socket. Their read pumps then unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomSize returns how many connections registered logicalID.
func (h *Hub) RoomSize(logicalID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[logicalID])
}

// enqueue must be called with the hub lock held so the queue cannot be
// closed concurrently.
func (c *Connection) enqueue(data []byte) error {
	if c.closed {
		return ErrNoRecipients
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}
