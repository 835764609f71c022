package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	AI struct {
		APIKey     string `yaml:"api_key"`
		APIURL     string `yaml:"api_url"`
		Model      string `yaml:"model"`
		BlendScore bool   `yaml:"blend_score"`
	} `yaml:"ai"`
	Speech struct {
		StreamingEnabled   bool   `yaml:"streaming_enabled"`
		Language           string `yaml:"language"`
		SampleRate         int    `yaml:"sample_rate"`
		Encoding           string `yaml:"encoding"`
		GenerationInterval string `yaml:"generation_interval"`
		Deepgram           struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"deepgram"`
		Whisper struct {
			APIKey string `yaml:"api_key"`
			APIURL string `yaml:"api_url"`
			Model  string `yaml:"model"`
		} `yaml:"whisper"`
	} `yaml:"speech"`
	Quiz struct {
		DefaultTimeLimit string `yaml:"default_time_limit"`
		AnswerCacheTTL   string `yaml:"answer_cache_ttl"`
	} `yaml:"quiz"`
	Canvas struct {
		MaxSyncStrokes int `yaml:"max_sync_strokes"`
	} `yaml:"canvas"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// GenerationInterval returns the question-generation trigger interval,
// clamped to [10s, 300s].
func (c Config) GenerationInterval() time.Duration {
	d := TTLDuration(c.Speech.GenerationInterval, 90*time.Second)
	if d < 10*time.Second {
		return 10 * time.Second
	}
	if d > 300*time.Second {
		return 300 * time.Second
	}
	return d
}
