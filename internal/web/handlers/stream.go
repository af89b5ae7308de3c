package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/logger"
)

// FrameSink receives webcam frames and capture failures from streaming clients.
// Frames are tagged with the id of the client that sent them.
type FrameSink interface {
	Push(clientID string, data []byte) error
	Fail(err error)
	Drop(clientID string)
}

// StreamHandler accepts the webcam frame websocket.
type StreamHandler struct {
	sink         FrameSink
	upgrader     websocket.Upgrader
	maxFrameSize int64
}

// NewStreamHandler creates a stream handler. checkOrigin decides which
// browser origins may open the socket.
func NewStreamHandler(sink FrameSink, maxFrameSize int, checkOrigin func(r *http.Request) bool) *StreamHandler {
	return &StreamHandler{
		sink: sink,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 1024,
		},
		maxFrameSize: int64(maxFrameSize),
	}
}

// ControlMessage is a text message sent by a streaming client, or back to it.
type ControlMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// Control message types and capture failure kinds.
const (
	controlError      = "error"
	controlHello      = "hello"
	capturePermission = "permission"
	captureDevice     = "device"
)

// Stream upgrades the request and feeds every binary message into the frame sink.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	log := logger.FromContext(r.Context()).With(zap.String("client_id", clientID))
	log.Info("stream client connected", zap.String("remote", sanitizeForLog(r.RemoteAddr)))

	if h.maxFrameSize > 0 {
		conn.SetReadLimit(h.maxFrameSize)
	}
	if err := h.write(conn, ControlMessage{Type: controlHello, Message: clientID}); err != nil {
		log.Warn("stream hello failed", zap.Error(err))
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("stream read failed", zap.Error(err))
			}
			h.sink.Drop(clientID)
			log.Info("stream client disconnected")
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := h.sink.Push(clientID, data); err != nil {
				log.Debug("frame rejected", zap.Error(err))
				if err := h.write(conn, ControlMessage{Type: controlError, Kind: "decode", Message: err.Error()}); err != nil {
					return
				}
			}
		case websocket.TextMessage:
			h.handleControl(log, data)
		}
	}
}

// handleControl applies a client control message. Unknown messages are ignored.
func (h *StreamHandler) handleControl(log *zap.Logger, data []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("invalid control message", zap.Error(err))
		return
	}
	if msg.Type != controlError {
		return
	}

	switch msg.Kind {
	case capturePermission, captureDevice:
		err := capture.ErrPermissionDenied
		if msg.Message != "" {
			err = fmt.Errorf("%w: %s", capture.ErrPermissionDenied, sanitizeForLog(msg.Message))
		}
		log.Warn("client reported capture failure", zap.String("kind", msg.Kind), zap.Error(err))
		h.sink.Fail(err)
	default:
		log.Debug("unknown capture failure kind", zap.String("kind", sanitizeForLog(msg.Kind)))
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, msg ControlMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(constants.StreamWriteTimeoutSeconds * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
