package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizhub/internal/app"
	"quizhub/internal/identity"
)

// WSHandler serves quiz sessions over websockets: each connection carries the
// identity from its query parameters, records answers and attempts, and
// streams leaderboard snapshots as they change.
type WSHandler struct {
	leaderboard *app.LeaderboardService
	progressFor func(*identity.User) *app.ProgressService
	upgrader    websocket.Upgrader
}

func NewWSHandler(leaderboard *app.LeaderboardService, progressFor func(*identity.User) *app.ProgressService) *WSHandler {
	return &WSHandler{
		leaderboard: leaderboard,
		progressFor: progressFor,
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

type attemptPayload struct {
	QuizID         string `json:"quizId"`
	TotalCorrect   int    `json:"totalCorrect"`
	TotalQuestions int    `json:"totalQuestions"`
}

type answerPayload struct {
	ItemID  string `json:"itemId"`
	Correct bool   `json:"correct"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// session use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	user := &identity.User{
		ID:        userID,
		Email:     r.URL.Query().Get("email"),
		Anonymous: r.URL.Query().Get("anonymous") == "true",
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	progress := h.progressFor(user)
	if _, err := progress.Fetch(r.Context()); err != nil {
		log.Printf("ws: load progress for %s: %v", userID, err)
	}

	snapshot, err := h.leaderboard.Snapshot(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	key, updates := h.leaderboard.Subscribe()
	defer h.leaderboard.Cleanup(key)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: snapshot}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			progress.RecordAnswer(r.Context(), payload.ItemID, payload.Correct)
		case "attempt":
			var payload attemptPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid attempt payload"}}
				continue
			}
			progress.RecordAttempt(r.Context(), payload.QuizID, payload.TotalCorrect, payload.TotalQuestions)
			send <- outboundMessage[any]{Type: "progress", Payload: progressPayload{
				QuizID:     payload.QuizID,
				Percentage: progress.ProgressPercentage(),
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

type progressPayload struct {
	QuizID     string `json:"quizId"`
	Percentage int    `json:"percentage"`
}
