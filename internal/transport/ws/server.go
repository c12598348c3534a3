package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lexiqai/scribe-gateway/internal/config"
	"github.com/lexiqai/scribe-gateway/internal/observability"
	"github.com/lexiqai/scribe-gateway/internal/session"
)

// SessionHandler receives the session events decoded from each connection.
// Calls for one connection arrive in frame order.
type SessionHandler interface {
	OnConnect(connID string)
	OnRegister(connID, logicalID string)
	OnStart(connID string, p session.StartPayload)
	OnAudio(connID string, chunk []byte)
	OnStop(connID string)
	OnDisconnect(connID string)
}

// Server handles WebSocket connections.
type Server struct {
	hub      *Hub
	handler  SessionHandler
	upgrader websocket.Upgrader

	maxMessageSize int64
	pingInterval   time.Duration
	writeTimeout   time.Duration
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, hub *Hub, handler SessionHandler) *Server {
	return &Server{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		maxMessageSize: cfg.WSMaxMessageSize,
		pingInterval:   time.Duration(cfg.WSPingInterval) * time.Second,
		writeTimeout:   time.Duration(cfg.WSWriteTimeout) * time.Second,
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger := observability.GetLogger()
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return err
	}

	logger := observability.WithCorrelationID(observability.NewCorrelationID())
	conn := s.hub.NewConnection(ws, logger)
	s.hub.Register(conn)
	s.handler.OnConnect(conn.ID)

	ws.SetReadLimit(s.maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) pongWait() time.Duration {
	return 2 * s.pingInterval
}

// readPump reads frames until the socket fails, then tears the session down.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		s.handler.OnDisconnect(conn.ID)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.pongWait()))
		return nil
	})

	for {
		messageType, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				conn.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handler.OnAudio(conn.ID, message)
		case websocket.TextMessage:
			s.handleMessage(conn, message)
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				conn.logger.Warn().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one envelope.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch env.Event {
	case EventRegisterSession:
		var p RegisterPayload
		if !decodeData(env.Data, &p) {
			s.sendError(conn, "invalid register-session payload")
			return
		}
		logicalID := p.ID()
		s.hub.Join(conn, logicalID)
		s.handler.OnRegister(conn.ID, logicalID)

	case EventStartRecording:
		var p session.StartPayload
		if !decodeData(env.Data, &p) {
			s.sendError(conn, "invalid start-recording payload")
			return
		}
		s.handler.OnStart(conn.ID, p)

	case EventAudioData:
		var p AudioPayload
		if !decodeData(env.Data, &p) {
			s.sendError(conn, "invalid audio-data payload")
			return
		}
		s.handler.OnAudio(conn.ID, p.AudioChunk)

	case EventStopRecording:
		s.handler.OnStop(conn.ID)

	default:
		conn.logger.Debug().Str("event", env.Event).Msg("Unknown event")
		s.sendError(conn, "unknown event: "+env.Event)
	}
}

// decodeData accepts an absent or null payload as the zero value.
func decodeData(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

func (s *Server) sendError(conn *Connection, message string) {
	if err := s.hub.EmitToConnection(conn.ID, EventError, ErrorPayload{Message: message}); err != nil {
		conn.logger.Warn().Err(err).Msg("Failed to send error event")
	}
}
