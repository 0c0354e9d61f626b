package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler is the presentation boundary: it relays UI intents (start,
// answer, navigate, finish) into the quiz service and streams state
// snapshots back over the socket.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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

type startPayload struct {
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type highScoresPayload struct {
	Entries []domain.HighScoreEntry `json:"entries"`
}

// ServeWS upgrades the request and wires the connection into the quiz use
// cases. One quiz session per connection, keyed by the clientId query param.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "missing clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer h.service.CloseSession(clientID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var pumps sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var subMu sync.Mutex
	var unsubscribe func()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start", "restart":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- errorMessage("invalid start payload")
					continue
				}
			}
			pumps.Add(1)
			go func() {
				defer pumps.Done()
				h.startSession(clientID, payload, send, closeSignals, &pumps, &subMu, &unsubscribe)
			}()

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			if err := h.service.SubmitAnswer(clientID, payload.QuestionID, payload.OptionIndex); err != nil {
				send <- errorMessage(err.Error())
			}

		case "advance":
			if err := h.service.Advance(clientID); err != nil {
				send <- errorMessage(err.Error())
			}

		case "previous":
			if err := h.service.Previous(clientID); err != nil {
				send <- errorMessage(err.Error())
			}

		case "finish":
			report, err := h.service.Finish(r.Context(), clientID)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "results", Payload: report}

		case "highScores":
			entries, err := h.service.HighScores(r.Context())
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "highScores", Payload: highScoresPayload{Entries: entries}}

		case "clearHighScores":
			if err := h.service.ClearHighScores(r.Context()); err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "highScores", Payload: highScoresPayload{Entries: nil}}

		default:
			send <- errorMessage("unknown message type")
		}
	}

	subMu.Lock()
	if unsubscribe != nil {
		unsubscribe()
	}
	subMu.Unlock()

	close(closeSignals)
	pumps.Wait()
	close(send)
	<-writerDone
}

// startSession runs the (possibly slow) question acquisition off the read
// loop and attaches a fresh state subscription on success.
func (h *WSHandler) startSession(clientID string, payload startPayload, send chan outboundMessage[any], closeSignals chan struct{}, pumps *sync.WaitGroup, subMu *sync.Mutex, unsubscribe *func()) {
	subMu.Lock()
	if *unsubscribe != nil {
		(*unsubscribe)()
		*unsubscribe = nil
	}
	subMu.Unlock()

	difficulty := domain.ParseDifficulty(payload.Difficulty)
	session, err := h.service.StartSession(context.Background(), clientID, difficulty, payload.Category)
	if err != nil {
		select {
		case send <- errorMessage(err.Error()):
		case <-closeSignals:
		}
		return
	}

	updates, cancel := session.Subscribe()
	subMu.Lock()
	*unsubscribe = cancel
	subMu.Unlock()

	pumps.Add(1)
	go func() {
		defer pumps.Done()
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snapshot}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
