package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livequiz-service/internal/ai"
	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/hub"
	"livequiz-service/internal/infra/memory"
	pgstore "livequiz-service/internal/infra/postgres"
	redisinfra "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/questiongen"
	"livequiz-service/internal/speech"
	transport "livequiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Persistence: Postgres when configured, otherwise the seeded in-memory
	// store for demo runs.
	var (
		store       app.Store
		qStore      questiongen.Store
		transcripts transport.TranscriptStore
	)
	if pool != nil {
		pg := pgstore.NewStore(pool)
		store, qStore, transcripts = pg, pg, pg
	} else {
		mem := memory.NewStore()
		seedSampleEvent(mem)
		store, qStore, transcripts = mem, mem, mem
	}

	var answerCache questiongen.AnswerCache
	if redisClient != nil {
		cacheTTL := config.TTLDuration(cfg.Quiz.AnswerCacheTTL, time.Hour)
		answerCache = redisinfra.NewAnswerCache(redisClient, cacheTTL)
	} else {
		answerCache = memory.NewAnswerCache()
	}

	aiProvider := ai.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.APIURL, cfg.AI.Model)
	timeLimit := config.TTLDuration(cfg.Quiz.DefaultTimeLimit, 30*time.Second)
	questions := questiongen.NewService(aiProvider, qStore, answerCache, cfg.AI.BlendScore, timeLimit.Milliseconds())

	sessions := hub.New()
	service := app.NewQuizService(sessions, store, questions)
	if redisClient != nil {
		livenessTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		service.SetLiveness(redisinfra.NewLiveness(redisClient, livenessTTL))
	}

	deepgram := speech.NewDeepgramClient(cfg.Speech.Deepgram.APIKey, cfg.Speech.Deepgram.Model)
	whisper := speech.NewWhisperClient(cfg.Speech.Whisper.APIKey, cfg.Speech.Whisper.APIURL, cfg.Speech.Whisper.Model)
	selector := speech.NewSelector(cfg.Speech.StreamingEnabled, deepgram, whisper)

	sampleRate := cfg.Speech.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	streamCfg := speech.StreamConfig{
		SampleRate: sampleRate,
		Channels:   1,
		Language:   cfg.Speech.Language,
		Encoding:   cfg.Speech.Encoding,
	}

	quizHandler := transport.NewQuizHandler(service, cfg.Canvas.MaxSyncStrokes)
	audioHandler := transport.NewAudioHandler(sessions, selector, questions, transcripts, streamCfg, cfg.GenerationInterval())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/api/events/lookup", transport.NewLookupHandler(store))
	mux.HandleFunc("/ws/quiz", quizHandler.ServeWS)
	mux.HandleFunc("/ws/audio", audioHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting livequiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedSampleEvent provides minimal demo data; swap for Postgres in production.
func seedSampleEvent(store *memory.Store) {
	store.AddUser(domain.Participant{UserID: "host-1", DisplayName: "Host"})
	store.AddUser(domain.Participant{UserID: "presenter-1", DisplayName: "Presenter"})
	store.AddEvent(domain.Event{ID: "event-1", HostUserID: "host-1", SessionCode: "DEMO42"})
	store.AddSegment(domain.Segment{ID: "segment-1", EventID: "event-1", PresenterUserID: "presenter-1", OrderIndex: 0})
	store.AddQuestion(domain.Question{
		ID:            "q1",
		SegmentID:     "segment-1",
		Text:          "What is the capital of France?",
		CorrectAnswer: "Paris",
		OrderIndex:    0,
		TimeLimitMS:   30000,
	})
}
