package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/runtime"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

// Handler upgrades HTTP requests to websocket connections and drives one
// Session per connection. Connections start Anonymous; a setup frame
// carrying a valid token identifies them. Each connection's frames are
// processed independently: nothing here may take down another session.
type Handler struct {
	log      *slog.Logger
	presence contract.IPresence
	rooms    contract.IRooms
	typing   *runtime.TypingRelay
	verifier contract.TokenVerifier

	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, presence contract.IPresence, rooms contract.IRooms,
	typing *runtime.TypingRelay, verifier contract.TokenVerifier, bufferSize int) *Handler {
	return &Handler{
		log:      log,
		presence: presence,
		rooms:    rooms,
		typing:   typing,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: bufferSize,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	conn := NewConn(h.bufferSize)
	session := runtime.NewSession(conn, h.presence, h.rooms, h.typing)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Teardown runs unconditionally, whichever pump dies first: every
	// room subscription and the presence entry must go away promptly.
	defer session.Close()
	defer socket.Close()

	go h.writePump(ctx, cancel, socket, conn)
	h.readPump(ctx, socket, session)
}

// readPump drives the session state machine from inbound frames. It
// returns when the client disconnects or the connection errors out.
func (h *Handler) readPump(ctx context.Context, socket *websocket.Conn, session *runtime.Session) {
	_ = socket.SetReadDeadline(time.Now().Add(pongTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var frame ClientFrame
		if err := socket.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("Websocket read failed", "error", err)
			}
			return
		}
		h.handleFrame(ctx, frame, session)
	}
}

// handleFrame rejects everything but setup on an anonymous connection;
// a rejected frame never terminates the connection.
func (h *Handler) handleFrame(ctx context.Context, frame ClientFrame, session *runtime.Session) {
	var err error
	switch frame.Type {
	case FrameSetup:
		var userID string
		userID, err = h.verifier.Verify(frame.Token)
		if err == nil {
			err = session.Identify(ctx, userID)
		}
	case FrameJoin:
		err = session.Join(frame.RoomID)
	case FrameLeave:
		err = session.Leave(frame.RoomID)
	case FrameTyping:
		err = session.TypingStart(ctx, frame.RoomID)
	case FrameStopTyping:
		err = session.TypingStop(ctx, frame.RoomID)
	default:
		h.log.Debug("Unknown frame type", "type", frame.Type)
		return
	}

	switch err {
	case nil:
	case errors.ErrNotIdentified, errors.ErrInvalidToken, errors.ErrAlreadyIdentified:
		h.log.Warn("Frame rejected",
			"type", frame.Type,
			"user_id", session.UserID(),
			"error", err)
	default:
		h.log.Warn("Frame failed", "type", frame.Type, "error", err)
	}
}

// writePump serializes events to the socket and keeps the connection
// alive with pings. A write failure cancels the whole connection.
func (h *Handler) writePump(ctx context.Context, cancel context.CancelFunc, socket *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-conn.Events():
			_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := socket.WriteJSON(toServerFrame(evt)); err != nil {
				h.log.Debug("Websocket write failed", "connection_id", conn.ID(), "error", err)
				cancel()
				return
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		}
	}
}
