package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livequiz-service/internal/ai"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/hub"
	"livequiz-service/internal/infra/memory"
	"livequiz-service/internal/questiongen"
	"livequiz-service/internal/speech"
	"github.com/gorilla/websocket"
)

const spokenText = "Today we are covering the history of France and its capital city Paris, founded on the banks of the Seine."

type echoSpeech struct{ text string }

func (p *echoSpeech) Name() string { return "echo" }

func (p *echoSpeech) Transcribe(_ context.Context, _ []byte) (string, error) {
	return p.text, nil
}

type cannedAI struct{}

func (cannedAI) GenerateFakeAnswers(_ context.Context, _, _ string, _ int) ([]string, error) {
	return []string{"Lyon", "Marseille", "Nice"}, nil
}

func (cannedAI) AnalyzeAndGenerateQuestion(_ context.Context, _, _ string) (*ai.Candidate, error) {
	return &ai.Candidate{
		Question:      "What is the capital of France?",
		CorrectAnswer: "Paris",
	}, nil
}

func TestAudioPipelineRESTMode(t *testing.T) {
	store := memory.NewStore()
	h := hub.New()
	questions := questiongen.NewService(cannedAI{}, store, memory.NewAnswerCache(), false, 30000)
	selector := speech.NewSelector(false, &echoSpeech{text: spokenText})
	handler := NewAudioHandler(h, selector, questions, store, speech.StreamConfig{SampleRate: 16000, Channels: 1}, 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/audio", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	// Listen on the event bus the way quiz clients would.
	sub := h.GetOrCreate("event-1")
	defer sub.Cancel()

	u := "ws" + server.URL[len("http"):] + "/ws/audio?eventId=event-1&segmentId=seg-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	transcript := waitForBus(t, sub, domain.MsgTranscriptUpdate)
	update := transcript.(domain.TranscriptUpdatePayload)
	if update.Text != spokenText || !update.IsFinal {
		t.Fatalf("unexpected transcript update %+v", update)
	}

	generated := waitForBus(t, sub, domain.MsgQuestionGenerated)
	payload := generated.(domain.QuestionGeneratedPayload)
	if payload.CorrectAnswer != "Paris" {
		t.Fatalf("unexpected generated question %+v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": domain.CmdAudioStop}); err != nil {
		t.Fatalf("send stop: %v", err)
	}

	waitUntil(t, func() bool { return len(store.TranscriptChunks("seg-1")) == 1 })
	chunks := store.TranscriptChunks("seg-1")
	if chunks[0].Text != spokenText || chunks[0].ChunkIndex != 0 {
		t.Fatalf("unexpected stored chunk %+v", chunks[0])
	}

	waitUntil(t, func() bool {
		stored, _ := store.QuestionsBySegmentOrdered(context.Background(), "seg-1")
		return len(stored) == 1
	})
}

type brokenStream struct {
	results chan speech.Result
	sendErr error
}

func (s *brokenStream) SendAudio(_ []byte) error      { return s.sendErr }
func (s *brokenStream) Results() <-chan speech.Result { return s.results }
func (s *brokenStream) Close() error {
	close(s.results)
	return nil
}

type failingStreaming struct {
	echoSpeech
	stream *brokenStream
}

func (p *failingStreaming) OpenStream(_ context.Context, _ speech.StreamConfig) (speech.Stream, error) {
	return p.stream, nil
}

func TestAudioStreamFailureReportsAndCloses(t *testing.T) {
	stream := &brokenStream{
		results: make(chan speech.Result),
		sendErr: errors.New("vendor connection reset"),
	}
	selector := speech.NewSelector(true, &failingStreaming{stream: stream})
	handler := NewAudioHandler(hub.New(), selector, nil, nil, speech.StreamConfig{SampleRate: 16000, Channels: 1}, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/audio", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/audio?eventId=event-1&segmentId=seg-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Keep frames coming well past the pipeline buffer; the session must
	// report the failure instead of stalling on a dead stream.
	go func() {
		for i := 0; i < 20; i++ {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}); err != nil {
				return
			}
		}
	}()

	var msg struct {
		Type    string                           `json:"type"`
		Payload domain.TranscriptionErrorPayload `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("expected a transcription error before close: %v", err)
	}
	if msg.Type != domain.MsgTranscriptionError {
		t.Fatalf("expected %s, got %s", domain.MsgTranscriptionError, msg.Type)
	}

	// The session tears down after the failure rather than lingering.
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected the connection closed after the failure, got %+v", msg)
	}
}

func TestAudioRejectsMissingSegment(t *testing.T) {
	handler := NewAudioHandler(hub.New(), speech.NewSelector(false), nil, nil, speech.StreamConfig{}, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/audio", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/audio?eventId=event-1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure without segmentId")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestAudioNoProviderReportsError(t *testing.T) {
	handler := NewAudioHandler(hub.New(), speech.NewSelector(false), nil, nil, speech.StreamConfig{}, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/audio", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/audio?eventId=event-1&segmentId=seg-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type string `json:"type"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != domain.MsgTranscriptionError {
		t.Fatalf("expected transcription error, got %s", msg.Type)
	}
}

func waitForBus(t *testing.T, sub *hub.Subscription, want string) any {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-sub.C:
			if msg.Type == want {
				return msg.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on the bus", want)
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached")
}
