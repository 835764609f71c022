package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DeepgramClient transcribes audio via Deepgram. It supports both single-shot
// REST transcription and true streaming over a persistent duplex websocket.
type DeepgramClient struct {
	httpClient *http.Client
	apiKey     string
	apiHost    string
	wsHost     string
	model      string
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "nova-2"
	}
	return &DeepgramClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		apiHost:    "https://api.deepgram.com",
		wsHost:     "wss://api.deepgram.com",
		model:      model,
	}
}

func (c *DeepgramClient) Name() string { return "deepgram" }

func (c *DeepgramClient) IsAvailable() bool { return c.apiKey != "" }

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives"`
}

type deepgramResponse struct {
	Type    string          `json:"type"`
	IsFinal bool            `json:"is_final"`
	Channel deepgramChannel `json:"channel"`
	Results *struct {
		Channels []deepgramChannel `json:"channels"`
	} `json:"results,omitempty"`
}

// Transcribe performs one REST transcription cycle.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("deepgram transcription is not configured")
	}

	endpoint := c.apiHost + "/v1/listen?model=" + url.QueryEscape(c.model) + "&smart_format=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if parsed.Results != nil && len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
	}
	return "", nil
}

// OpenStream dials the duplex streaming endpoint and starts the sender and
// receiver loops. The two loops are independent: a slow vendor response
// never blocks audio ingestion and vice versa.
func (c *DeepgramClient) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("deepgram transcription is not configured")
	}

	query := url.Values{}
	query.Set("model", c.model)
	query.Set("interim_results", "true")
	query.Set("smart_format", "true")
	if cfg.Encoding != "" {
		query.Set("encoding", cfg.Encoding)
	}
	if cfg.SampleRate > 0 {
		query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		query.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}

	header := http.Header{"Authorization": []string{"Token " + c.apiKey}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsHost+"/v1/listen?"+query.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial deepgram: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:    conn,
		audio:   make(chan []byte, 32),
		results: make(chan Result, 32),
		done:    make(chan struct{}),
	}
	go s.sendLoop()
	go s.receiveLoop()
	return s, nil
}

type deepgramStream struct {
	conn      *websocket.Conn
	audio     chan []byte
	results   chan Result
	done      chan struct{}
	closeOnce sync.Once
}

func (s *deepgramStream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("stream closed")
	case s.audio <- chunk:
		return nil
	}
}

func (s *deepgramStream) Results() <-chan Result { return s.results }

func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		// Ask the vendor to flush pending audio before tearing down.
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = s.conn.Close()
	})
	return nil
}

// sendLoop forwards audio frames from the bounded channel to the vendor
// socket until the stream is closed.
func (s *deepgramStream) sendLoop() {
	for {
		select {
		case <-s.done:
			return
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				log.Printf("deepgram: write audio failed: %v", err)
				s.Close()
				return
			}
		}
	}
}

// receiveLoop decodes vendor messages into Results until the connection
// drops. Non-result frames (metadata, keepalives) are skipped in the loop;
// no recursion on empty messages.
func (s *deepgramStream) receiveLoop() {
	defer close(s.results)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("deepgram: read failed: %v", err)
				s.Close()
			}
			return
		}
		if len(data) == 0 {
			continue
		}

		var parsed deepgramResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			log.Printf("deepgram: unparsable message: %v", err)
			continue
		}
		if parsed.Type != "" && parsed.Type != "Results" {
			continue
		}
		if len(parsed.Channel.Alternatives) == 0 {
			continue
		}
		alt := parsed.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		select {
		case s.results <- Result{Text: alt.Transcript, IsFinal: parsed.IsFinal, Confidence: alt.Confidence}:
		case <-s.done:
			return
		}
	}
}
