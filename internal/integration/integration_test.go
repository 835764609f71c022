package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"livequiz-service/internal/ai"
	"livequiz-service/internal/app"
	"livequiz-service/internal/hub"
	pgstore "livequiz-service/internal/infra/postgres"
	pgmigrations "livequiz-service/internal/infra/postgres/migrations"
	infraredis "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/questiongen"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := pgstore.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewAnswerCache(redisClient, 5*time.Minute)
	questions := questiongen.NewService(stubAI{}, store, cache, false, 30000)

	service := app.NewQuizService(hub.New(), store, questions)

	if _, err := service.Join(ctx, "event-1", "u1", "DEMO42"); err != nil {
		t.Fatalf("join u1: %v", err)
	}
	if _, err := service.Join(ctx, "event-1", "u2", "DEMO42"); err != nil {
		t.Fatalf("join u2: %v", err)
	}

	if err := service.NextQuestion(ctx, "event-1", "host-1"); err != nil {
		t.Fatalf("next question: %v", err)
	}

	// The answer set must now be cached in Redis.
	cached, ok, err := cache.Get(ctx, "q1")
	if err != nil || !ok {
		t.Fatalf("expected cached answers, got ok=%v err=%v", ok, err)
	}
	if len(cached) != 4 {
		t.Fatalf("expected correct answer plus 3 distractors, got %d", len(cached))
	}

	if err := service.SubmitAnswer(ctx, "event-1", "u1", "q1", "Paris", 1000); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if err := service.SubmitAnswer(ctx, "event-1", "u2", "q1", "Lyon", 2000); err != nil {
		t.Fatalf("submit u2: %v", err)
	}

	lb, err := store.SegmentLeaderboard(ctx, "seg-1")
	if err != nil {
		t.Fatalf("segment leaderboard: %v", err)
	}
	if len(lb) != 2 || lb[0].UserID != "u1" || lb[0].Score <= 900 {
		t.Fatalf("expected u1 leading above 900, got %+v", lb)
	}
	if lb[0].DisplayName != "Alice" {
		t.Fatalf("expected display name joined from users, got %+v", lb[0])
	}

	if err := service.EndGame(ctx, "event-1", "host-1"); err != nil {
		t.Fatalf("end game: %v", err)
	}

	ev, err := store.EventByID(ctx, "event-1")
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if !ev.Finished {
		t.Fatalf("expected single-segment event finished after end game")
	}
}

type stubAI struct{}

func (stubAI) GenerateFakeAnswers(_ context.Context, _, _ string, _ int) ([]string, error) {
	return []string{"Lyon", "Marseille", "Nice"}, nil
}

func (stubAI) AnalyzeAndGenerateQuestion(_ context.Context, _, _ string) (*ai.Candidate, error) {
	return nil, nil
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stmts := []string{
		`INSERT INTO users (id, display_name) VALUES ('host-1', 'Host'), ('u1', 'Alice'), ('u2', 'Bob')`,
		`INSERT INTO events (id, host_user_id, session_code) VALUES ('event-1', 'host-1', 'DEMO42')`,
		`INSERT INTO segments (id, event_id, presenter_user_id, order_index) VALUES ('seg-1', 'event-1', 'pres-1', 0)`,
		`INSERT INTO questions (id, segment_id, text, correct_answer, order_index, time_limit_ms)
		 VALUES ('q1', 'seg-1', 'What is the capital of France?', 'Paris', 0, 30000)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
