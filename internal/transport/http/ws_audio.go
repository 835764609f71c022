package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/hub"
	"livequiz-service/internal/questiongen"
	"livequiz-service/internal/speech"
	"github.com/gorilla/websocket"
)

// TranscriptStore persists final transcript fragments.
type TranscriptStore interface {
	InsertTranscriptChunk(ctx context.Context, chunk domain.TranscriptChunk) error
}

// AudioHandler runs the live-audio pipeline for one presenter connection:
// binary frames in, transcript updates and generated questions out through
// the event's broadcast bus.
type AudioHandler struct {
	hub         *hub.Hub
	selector    *speech.Selector
	questions   *questiongen.Service
	transcripts TranscriptStore
	upgrader    websocket.Upgrader
	streamCfg   speech.StreamConfig
	genInterval time.Duration
}

func NewAudioHandler(h *hub.Hub, selector *speech.Selector, questions *questiongen.Service, transcripts TranscriptStore, streamCfg speech.StreamConfig, genInterval time.Duration) *AudioHandler {
	return &AudioHandler{
		hub:         h,
		selector:    selector,
		questions:   questions,
		transcripts: transcripts,
		streamCfg:   streamCfg,
		genInterval: genInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type audioControl struct {
	Type string `json:"type"`
}

// audioSession is the per-connection pipeline state, touched only by the
// result-processing goroutine.
type audioSession struct {
	eventID     string
	segmentID   string
	accumulated strings.Builder
	delta       strings.Builder
	chunkStart  time.Time
	lastGen     time.Time
}

// ServeWS runs the audio pipeline for one connection. Two concurrent loops
// drive the vendor session: an audio-forwarding loop and a vendor-response
// loop, joined by bounded channels so neither side blocks the other.
func (h *AudioHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	segmentID := r.URL.Query().Get("segmentId")
	if eventID == "" || segmentID == "" {
		// Refused before any session state is created.
		http.Error(w, "missing eventId or segmentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("audio ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	stream, restProvider, err := h.selector.OpenSession(ctx, h.streamCfg)
	if err != nil {
		log.Printf("audio: open transcription session for event %s: %v", eventID, err)
		_ = conn.WriteJSON(domain.Message{Type: domain.MsgTranscriptionError, Payload: domain.TranscriptionErrorPayload{Error: "transcription unavailable"}})
		return
	}

	session := &audioSession{
		eventID:    eventID,
		segmentID:  segmentID,
		chunkStart: time.Now(),
		lastGen:    time.Now(),
	}
	h.status(eventID, "transcribing")

	audioCh := make(chan []byte, 8)
	vendorDown := make(chan struct{})
	var wg sync.WaitGroup

	if stream != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for chunk := range audioCh {
				if err := stream.SendAudio(chunk); err != nil {
					log.Printf("audio: stream send failed for event %s: %v", eventID, err)
					h.hub.Broadcast(eventID, domain.Message{Type: domain.MsgTranscriptionError, Payload: domain.TranscriptionErrorPayload{Error: "transcription stream failed"}})
					_ = conn.WriteJSON(domain.Message{Type: domain.MsgTranscriptionError, Payload: domain.TranscriptionErrorPayload{Error: "transcription stream failed"}})
					close(vendorDown)
					// Fail the pending read as well; an idle client must not
					// keep a dead session open.
					_ = conn.SetReadDeadline(time.Now())
					// Drain until the read loop observes the failure and
					// closes the channel, so it never blocks on a dead stream.
					for range audioCh {
					}
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for res := range stream.Results() {
				h.handleResult(ctx, session, res)
			}
		}()
	} else {
		// REST pseudo-streaming: one request/response cycle per chunk, every
		// result final. Uniform across vendors, higher latency.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range audioCh {
				text, err := restProvider.Transcribe(ctx, chunk)
				if err != nil {
					log.Printf("audio: transcribe failed (provider %s): %v", restProvider.Name(), err)
					h.hub.Broadcast(eventID, domain.Message{Type: domain.MsgTranscriptionError, Payload: domain.TranscriptionErrorPayload{Error: "transcription failed"}})
					continue
				}
				if strings.TrimSpace(text) == "" {
					continue
				}
				h.handleResult(ctx, session, speech.Result{Text: text, IsFinal: true})
			}
		}()
	}

	// Inbound receive loop: binary frames carry audio, a text control frame
	// ends the session. Empty frames are skipped in the loop.
readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			select {
			case audioCh <- data:
			case <-vendorDown:
				break readLoop
			}
		case websocket.TextMessage:
			var ctrl audioControl
			if err := json.Unmarshal(data, &ctrl); err != nil {
				continue
			}
			if ctrl.Type == domain.CmdAudioStop {
				break readLoop
			}
		}
	}

	close(audioCh)
	if stream != nil {
		_ = stream.Close()
	}
	wg.Wait()
}

// handleResult persists and fans out one transcription result, and
// periodically hands the accumulated transcript to question generation.
func (h *AudioHandler) handleResult(ctx context.Context, s *audioSession, res speech.Result) {
	h.hub.Broadcast(s.eventID, domain.Message{Type: domain.MsgTranscriptUpdate, Payload: domain.TranscriptUpdatePayload{
		Text:    res.Text,
		IsFinal: res.IsFinal,
	}})
	if !res.IsFinal {
		return
	}

	now := time.Now()
	chunk := domain.TranscriptChunk{
		SegmentID: s.segmentID,
		Text:      res.Text,
		StartedAt: s.chunkStart,
		EndedAt:   now,
	}
	if err := h.transcripts.InsertTranscriptChunk(ctx, chunk); err != nil {
		log.Printf("audio: store transcript chunk: %v", err)
	}
	s.chunkStart = now

	if s.delta.Len() > 0 {
		s.delta.WriteByte(' ')
	}
	s.delta.WriteString(res.Text)

	if now.Sub(s.lastGen) < h.genInterval {
		return
	}
	s.lastGen = now

	h.status(s.eventID, "generating")
	generated, stored, err := h.questions.GenerateFromTranscript(ctx, s.segmentID, s.accumulated.String(), s.delta.String())
	if err != nil {
		log.Printf("audio: question generation failed: %v", err)
		h.hub.Broadcast(s.eventID, domain.Message{Type: domain.MsgTranscriptionError, Payload: domain.TranscriptionErrorPayload{Error: "question generation failed"}})
	} else if stored != nil {
		h.hub.Broadcast(s.eventID, domain.Message{Type: domain.MsgQuestionGenerated, Payload: domain.QuestionGeneratedPayload{
			Question:         generated.Question,
			CorrectAnswer:    generated.CorrectAnswer,
			SourceTranscript: generated.SourceTranscript,
		}})
		h.status(s.eventID, "ready")
	}

	if s.accumulated.Len() > 0 {
		s.accumulated.WriteByte(' ')
	}
	s.accumulated.WriteString(s.delta.String())
	s.delta.Reset()
	h.status(s.eventID, "transcribing")
}

func (h *AudioHandler) status(eventID, status string) {
	h.hub.Broadcast(eventID, domain.Message{Type: domain.MsgProcessingStatus, Payload: domain.ProcessingStatusPayload{Status: status}})
}
