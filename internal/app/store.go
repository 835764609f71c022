package app

import (
	"context"

	"livequiz-service/internal/domain"
)

// Store abstracts the persistence operations the quiz protocol consumes
// (Postgres in production, in-memory for tests and demo runs). Each call is
// an independent, non-transactional command or query; no multi-statement
// transaction spans a protocol command.
type Store interface {
	EventByID(ctx context.Context, eventID string) (domain.Event, error)
	EventBySessionCode(ctx context.Context, code string) (domain.Event, error)
	UserIdentity(ctx context.Context, userID string) (domain.Participant, error)

	SegmentByID(ctx context.Context, segmentID string) (domain.Segment, error)
	SegmentsByEvent(ctx context.Context, eventID string) ([]domain.Segment, error)
	SetSegmentPresenter(ctx context.Context, segmentID, userID string) error
	MarkSegmentCompleted(ctx context.Context, segmentID string) error
	MarkEventFinished(ctx context.Context, eventID string) error

	QuestionByID(ctx context.Context, questionID string) (domain.Question, error)
	QuestionsBySegmentOrdered(ctx context.Context, segmentID string) ([]domain.Question, error)

	UpsertAnswer(ctx context.Context, rec domain.AnswerRecord) error
	IncrementSegmentScore(ctx context.Context, segmentID, userID string, points int) error
	IncrementEventScore(ctx context.Context, eventID, userID string, points int) error

	SegmentLeaderboard(ctx context.Context, segmentID string) ([]domain.LeaderboardEntry, error)
	EventLeaderboard(ctx context.Context, eventID string) ([]domain.LeaderboardEntry, error)
}

// AnswerSource resolves the cached answer option set for a question,
// generating and caching it on first use. Repeated calls return identical
// content with per-call shuffled display order.
type AnswerSource interface {
	AnswersForQuestion(ctx context.Context, q domain.Question) ([]domain.GeneratedAnswer, error)
}
