package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// WSHandler upgrades connections and wires them into the game service.
// Each connection gets an opaque id that doubles as the player id for its
// lifetime.
type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type registerPayload struct {
	Name string `json:"name"`
}

type challengePayload struct {
	TargetID string `json:"targetId"`
}

type challengeReplyPayload struct {
	ChallengerID string `json:"challengerId"`
}

type submitAnswerPayload struct {
	RoomID         string  `json:"roomId"`
	QuestionIndex  int     `json:"questionIndex"`
	OptionIndex    int     `json:"optionIndex"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// ServeWS handles the full lifetime of one client connection: a writer
// goroutine drains the hub channel while the read loop dispatches inbound
// messages to the game service. Connection teardown doubles as the
// disconnect event.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	connID := uuid.NewString()
	events := h.hub.Add(connID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for event := range events {
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Str("conn_id", connID).Msg("ws write failed")
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(connID, inbound)
	}

	h.service.Disconnect(connID)
	h.hub.Remove(connID)
	<-writerDone
	_ = conn.Close()
}

func (h *WSHandler) dispatch(connID string, inbound inboundMessage) {
	switch inbound.Type {
	case "register":
		var payload registerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(connID, "invalid register payload")
			return
		}
		if _, err := h.service.Register(connID, payload.Name); err != nil {
			if errors.Is(err, domain.ErrInvalidName) {
				h.sendError(connID, "display name must not be empty")
				return
			}
			h.sendError(connID, err.Error())
		}
	case "challenge":
		var payload challengePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(connID, "invalid challenge payload")
			return
		}
		h.service.Challenge(connID, payload.TargetID)
	case "acceptChallenge":
		var payload challengeReplyPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(connID, "invalid accept payload")
			return
		}
		if err := h.service.AcceptChallenge(connID, payload.ChallengerID); err != nil {
			// Stale accepts are user-visible no-ops, never hard failures.
			h.sendError(connID, "challenge is no longer available")
		}
	case "rejectChallenge":
		var payload challengeReplyPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(connID, "invalid reject payload")
			return
		}
		_ = h.service.RejectChallenge(connID, payload.ChallengerID)
	case "submitAnswer":
		var payload submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(connID, "invalid answer payload")
			return
		}
		h.service.SubmitAnswer(connID, payload.RoomID, payload.QuestionIndex, payload.OptionIndex, payload.ElapsedSeconds)
	default:
		h.sendError(connID, "unsupported message type")
	}
}

func (h *WSHandler) sendError(connID, message string) {
	h.hub.Notify(connID, app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: message}})
}
