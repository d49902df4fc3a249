package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thiagokokada/gitrelay/internal/credentials"
	"github.com/thiagokokada/gitrelay/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is a frame sent by a client.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type watchRequest struct {
	Path string `json:"path"`
}

type watchAck struct {
	Repository string    `json:"repository,omitempty"`
	Error      *apiError `json:"error,omitempty"`
}

// handleSocket registers a connection and keeps it until either side closes.
// The first frame is always "connected" with the connection id.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		slog.Debug("websocket upgrade", slog.Any("error", err))
		return
	}
	id, events := s.hub.Register()
	_ = s.hub.Emit(id, "connected", map[string]string{"connectionId": id})

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, events)
	}()
	s.readPump(conn, id)
	s.hub.Unregister(id)
	<-done
}

func writePump(conn *websocket.Conn, events <-chan hub.Event) {
	defer conn.Close()
	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("websocket write", slog.Any("error", err))
			// Unblock the reader; the outbox is drained until it closes.
			conn.Close()
			for range events {
			}
			return
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) readPump(conn *websocket.Conn, id string) {
	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read", slog.String("conn", id), slog.Any("error", err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.emitError(id, "invalid-argument", "invalid message: "+err.Error())
			continue
		}
		s.dispatch(id, msg)
	}
}

func (s *Server) dispatch(id string, msg clientMessage) {
	switch msg.Event {
	case "watch":
		var req watchRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Path == "" {
			s.emitError(id, "invalid-argument", "watch needs a path")
			return
		}
		key, err := s.watches.Watch(id, req.Path)
		ack := watchAck{Repository: key}
		if err != nil {
			ack.Error = &apiError{Code: ErrorCode(err), Message: err.Error()}
		}
		_ = s.hub.Emit(id, "watch-ack", ack)
	case "unwatch":
		s.watches.Unwatch(id)
	case "credentials":
		var creds credentials.Credentials
		if err := json.Unmarshal(msg.Data, &creds); err != nil {
			s.emitError(id, "invalid-argument", "invalid credentials: "+err.Error())
			return
		}
		if err := s.relay.Supply(id, creds); err != nil {
			s.emitError(id, ErrorCode(err), err.Error())
		}
	default:
		s.emitError(id, "invalid-argument", "unknown event "+msg.Event)
	}
}

func (s *Server) emitError(id, code, message string) {
	_ = s.hub.Emit(id, "error", apiError{Code: code, Message: message})
}
