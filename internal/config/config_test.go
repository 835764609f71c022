package config

import (
	"testing"
	"time"
)

func TestGenerationIntervalClamped(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 90 * time.Second},
		{"garbage", 90 * time.Second},
		{"2s", 10 * time.Second},
		{"45s", 45 * time.Second},
		{"20m", 300 * time.Second},
	}
	for _, tc := range cases {
		var cfg Config
		cfg.Speech.GenerationInterval = tc.raw
		if got := cfg.GenerationInterval(); got != tc.want {
			t.Fatalf("interval %q: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("90s", time.Hour); got != 90*time.Second {
		t.Fatalf("expected parsed value, got %v", got)
	}
	if got := TTLDuration("nope", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for junk, got %v", got)
	}
}
