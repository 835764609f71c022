// Package speech abstracts speech-to-text vendors behind a capability
// contract: single-shot transcription for REST pseudo-streaming and duplex
// sessions for true streaming. The audio handler depends only on these
// interfaces; vendors are interchangeable and tests use doubles.
package speech

import "context"

// Result is one incremental transcription result. REST providers report
// every result as final with confidence 0.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// StreamConfig describes the audio format for a streaming session.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Language   string
	Encoding   string
}

// Provider is the single-shot transcription capability.
type Provider interface {
	// Name identifies the vendor for logs and the selection policy.
	Name() string
	// Transcribe converts one complete audio chunk to text.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// StreamingProvider opens persistent duplex transcription sessions.
type StreamingProvider interface {
	Provider
	// OpenStream opens one duplex connection for an audio session. A
	// connection failure terminates only that session; subsequent sessions
	// retry from scratch.
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stream is an open duplex transcription session. SendAudio never blocks on
// a slow vendor beyond the session's small internal buffer, and Results is
// closed when the session ends.
type Stream interface {
	SendAudio(chunk []byte) error
	Results() <-chan Result
	Close() error
}
