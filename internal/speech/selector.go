package speech

import (
	"context"

	"livequiz-service/internal/domain"
)

// configured is implemented by clients that can report whether a credential
// is present.
type configured interface {
	IsAvailable() bool
}

// Selector picks the transcription mode for each new audio session. Providers
// are checked in the fixed order they were registered; the first streaming-
// capable configured provider wins when streaming is enabled, otherwise the
// first configured provider serves REST pseudo-streaming.
type Selector struct {
	providers        []Provider
	streamingEnabled bool
}

func NewSelector(streamingEnabled bool, providers ...Provider) *Selector {
	return &Selector{providers: providers, streamingEnabled: streamingEnabled}
}

func available(p Provider) bool {
	if c, ok := p.(configured); ok {
		return c.IsAvailable()
	}
	return true
}

// OpenSession returns either an open Stream (true streaming) or a REST
// provider to call per chunk. Exactly one of the two is non-nil on success.
// A streaming dial failure fails only this session; later sessions retry
// streaming from scratch.
func (s *Selector) OpenSession(ctx context.Context, cfg StreamConfig) (Stream, Provider, error) {
	if s.streamingEnabled {
		for _, p := range s.providers {
			sp, ok := p.(StreamingProvider)
			if !ok || !available(p) {
				continue
			}
			stream, err := sp.OpenStream(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return stream, nil, nil
		}
	}

	for _, p := range s.providers {
		if available(p) {
			return nil, p, nil
		}
	}
	return nil, nil, domain.ErrNoProvider
}
