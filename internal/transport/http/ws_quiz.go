package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// QuizHandler upgrades quiz-channel websockets and runs the per-connection
// protocol loop against the quiz service.
type QuizHandler struct {
	service        *app.QuizService
	upgrader       websocket.Upgrader
	maxSyncStrokes int
}

func NewQuizHandler(service *app.QuizService, maxSyncStrokes int) *QuizHandler {
	if maxSyncStrokes <= 0 {
		maxSyncStrokes = 200
	}
	return &QuizHandler{
		service:        service,
		maxSyncStrokes: maxSyncStrokes,
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

type joinPayload struct {
	UserID      string `json:"user_id"`
	SessionCode string `json:"session_code"`
}

type answerPayload struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	ResponseTimeMS int64  `json:"response_time_ms"`
}

type passPresenterPayload struct {
	NextPresenterUserID string `json:"next_presenter_user_id"`
}

type strokePayload struct {
	Stroke domain.Stroke `json:"stroke"`
}

// ServeWS runs the quiz protocol for one connection. The inbound receive
// loop processes messages strictly in arrival order; a paired goroutine
// bridges the event's broadcast subscription to the outbound socket.
func (h *QuizHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		// Refused before any session state is created.
		http.Error(w, "missing eventId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.service.Hub().GetOrCreate(eventID)
	defer sub.Cancel()

	send := make(chan domain.Message, 16)
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
			case update, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// trySend gives every enqueue an escape: once the writer exits on a write
	// error, a half-closed socket must not wedge the read loop behind a full
	// send buffer.
	trySend := func(msg domain.Message) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	sendErr := func(text string) {
		trySend(domain.Message{Type: domain.MsgError, Payload: domain.ErrorPayload{Message: text}})
	}

	var joined bool
	var userID string
	ctx := r.Context()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		// Skip empty frames in the loop itself; never recurse on receipt.
		if msgType != websocket.TextMessage || len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			sendErr("invalid message")
			continue
		}

		switch inbound.Type {
		case domain.CmdJoin:
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.UserID == "" {
				sendErr("invalid join payload")
				continue
			}
			result, err := h.service.Join(ctx, eventID, payload.UserID, payload.SessionCode)
			if err != nil {
				sendErr(err.Error())
				continue
			}
			joined = true
			userID = payload.UserID
			trySend(domain.Message{Type: domain.MsgConnected, Payload: result.Connected})
			trySend(domain.Message{Type: domain.MsgCanvasSync, Payload: domain.CanvasSyncPayload{
				Strokes: h.service.Hub().StrokeHistory(eventID, h.maxSyncStrokes),
			}})
			// Announced only after the joiner's direct messages are enqueued,
			// so their own bridge cannot deliver the announcement ahead of
			// the Connected snapshot.
			h.service.Hub().Broadcast(eventID, domain.Message{Type: domain.MsgParticipantJoined, Payload: result.Joined})

		case domain.CmdAnswer:
			if !joined {
				sendErr(domain.ErrParticipantNotFound.Error())
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendErr("invalid answer payload")
				continue
			}
			if err := h.service.SubmitAnswer(ctx, eventID, userID, payload.QuestionID, payload.SelectedAnswer, payload.ResponseTimeMS); err != nil {
				sendErr(err.Error())
			}

		case domain.CmdStartGame, domain.CmdNextQuestion:
			h.runCommand(joined, sendErr, func() error {
				return h.service.NextQuestion(ctx, eventID, userID)
			})

		case domain.CmdRevealAnswer:
			h.runCommand(joined, sendErr, func() error {
				return h.service.RevealAnswer(ctx, eventID, userID)
			})

		case domain.CmdShowLeaderboard:
			h.runCommand(joined, sendErr, func() error {
				return h.service.ShowLeaderboard(ctx, eventID, userID)
			})

		case domain.CmdEndGame:
			h.runCommand(joined, sendErr, func() error {
				return h.service.EndGame(ctx, eventID, userID)
			})

		case domain.CmdPassPresenter:
			var payload passPresenterPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.NextPresenterUserID == "" {
				sendErr("invalid pass_presenter payload")
				continue
			}
			h.runCommand(joined, sendErr, func() error {
				return h.service.PassPresenter(ctx, eventID, userID, payload.NextPresenterUserID)
			})

		case domain.CmdDrawStroke:
			if !joined {
				sendErr(domain.ErrParticipantNotFound.Error())
				continue
			}
			var payload strokePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendErr("invalid stroke payload")
				continue
			}
			payload.Stroke.UserID = userID
			h.service.Hub().AddStroke(eventID, payload.Stroke)
			h.service.Hub().Broadcast(eventID, domain.Message{Type: domain.MsgStrokeAdded, Payload: payload})

		case domain.CmdClearCanvas:
			if !joined {
				sendErr(domain.ErrParticipantNotFound.Error())
				continue
			}
			h.service.Hub().ClearStrokes(eventID)
			h.service.Hub().Broadcast(eventID, domain.Message{Type: domain.MsgCanvasCleared})

		default:
			sendErr("unsupported message type")
		}
	}

	if joined {
		h.service.Disconnect(context.Background(), eventID, userID)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *QuizHandler) runCommand(joined bool, sendErr func(string), fn func() error) {
	if !joined {
		sendErr(domain.ErrParticipantNotFound.Error())
		return
	}
	if err := fn(); err != nil {
		sendErr(err.Error())
	}
}
