// Package postgres implements the persistence contracts on pgx. Each method
// is one independent command or query; protocol commands never span a
// transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"livequiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EventByID(ctx context.Context, eventID string) (domain.Event, error) {
	var ev domain.Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, host_user_id, session_code, finished FROM events WHERE id=$1`, eventID).
		Scan(&ev.ID, &ev.HostUserID, &ev.SessionCode, &ev.Finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event: %w", err)
	}
	return ev, nil
}

func (s *Store) EventBySessionCode(ctx context.Context, code string) (domain.Event, error) {
	var ev domain.Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, host_user_id, session_code, finished FROM events WHERE session_code=$1`, code).
		Scan(&ev.ID, &ev.HostUserID, &ev.SessionCode, &ev.Finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event by code: %w", err)
	}
	return ev, nil
}

func (s *Store) UserIdentity(ctx context.Context, userID string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, COALESCE(avatar_url, '') FROM users WHERE id=$1`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{UserID: userID, DisplayName: userID}, nil
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load user: %w", err)
	}
	return p, nil
}

func (s *Store) SegmentByID(ctx context.Context, segmentID string) (domain.Segment, error) {
	var seg domain.Segment
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, presenter_user_id, order_index, completed FROM segments WHERE id=$1`, segmentID).
		Scan(&seg.ID, &seg.EventID, &seg.PresenterUserID, &seg.OrderIndex, &seg.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Segment{}, domain.ErrSegmentNotFound
	}
	if err != nil {
		return domain.Segment{}, fmt.Errorf("load segment: %w", err)
	}
	return seg, nil
}

func (s *Store) SegmentsByEvent(ctx context.Context, eventID string) ([]domain.Segment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, presenter_user_id, order_index, completed
		 FROM segments WHERE event_id=$1 ORDER BY order_index`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		if err := rows.Scan(&seg.ID, &seg.EventID, &seg.PresenterUserID, &seg.OrderIndex, &seg.Completed); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *Store) SetSegmentPresenter(ctx context.Context, segmentID, userID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE segments SET presenter_user_id=$2 WHERE id=$1`, segmentID, userID)
	if err != nil {
		return fmt.Errorf("set presenter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}

func (s *Store) MarkSegmentCompleted(ctx context.Context, segmentID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE segments SET completed=TRUE WHERE id=$1`, segmentID)
	if err != nil {
		return fmt.Errorf("complete segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}

func (s *Store) MarkEventFinished(ctx context.Context, eventID string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE events SET finished=TRUE WHERE id=$1`, eventID); err != nil {
		return fmt.Errorf("finish event: %w", err)
	}
	return nil
}

func (s *Store) QuestionByID(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := s.pool.QueryRow(ctx,
		`SELECT id, segment_id, text, correct_answer, order_index, time_limit_ms FROM questions WHERE id=$1`, questionID).
		Scan(&q.ID, &q.SegmentID, &q.Text, &q.CorrectAnswer, &q.OrderIndex, &q.TimeLimitMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *Store) QuestionsBySegmentOrdered(ctx context.Context, segmentID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, segment_id, text, correct_answer, order_index, time_limit_ms
		 FROM questions WHERE segment_id=$1 ORDER BY order_index`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.SegmentID, &q.Text, &q.CorrectAnswer, &q.OrderIndex, &q.TimeLimitMS); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// InsertQuestion stores a generated question under the segment's next order
// index and returns the row as stored.
func (s *Store) InsertQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (segment_id, text, correct_answer, order_index, time_limit_ms)
		 VALUES ($1, $2, $3,
		   (SELECT COALESCE(MAX(order_index)+1, 0) FROM questions WHERE segment_id=$1),
		   $4)
		 RETURNING id, order_index`,
		q.SegmentID, q.Text, q.CorrectAnswer, q.TimeLimitMS).
		Scan(&q.ID, &q.OrderIndex)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// UpsertAnswer is keyed by (segment, question, user); resubmission
// overwrites so answer submission stays idempotent per question per user.
func (s *Store) UpsertAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (segment_id, question_id, user_id, selected_answer, response_time_ms, is_correct, points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (segment_id, question_id, user_id) DO UPDATE SET
		   selected_answer = EXCLUDED.selected_answer,
		   response_time_ms = EXCLUDED.response_time_ms,
		   is_correct = EXCLUDED.is_correct,
		   points = EXCLUDED.points`,
		rec.SegmentID, rec.QuestionID, rec.UserID, rec.SelectedAnswer, rec.ResponseTimeMS, rec.IsCorrect, rec.Points)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) IncrementSegmentScore(ctx context.Context, segmentID, userID string, points int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO segment_scores (segment_id, user_id, score) VALUES ($1, $2, $3)
		 ON CONFLICT (segment_id, user_id) DO UPDATE SET score = segment_scores.score + EXCLUDED.score`,
		segmentID, userID, points)
	if err != nil {
		return fmt.Errorf("increment segment score: %w", err)
	}
	return nil
}

func (s *Store) IncrementEventScore(ctx context.Context, eventID, userID string, points int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_scores (event_id, user_id, score) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET score = event_scores.score + EXCLUDED.score`,
		eventID, userID, points)
	if err != nil {
		return fmt.Errorf("increment event score: %w", err)
	}
	return nil
}

func (s *Store) SegmentLeaderboard(ctx context.Context, segmentID string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ss.user_id, COALESCE(u.display_name, ss.user_id), ss.score
		 FROM segment_scores ss LEFT JOIN users u ON u.id = ss.user_id
		 WHERE ss.segment_id=$1
		 ORDER BY ss.score DESC, COALESCE(u.display_name, ss.user_id)`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("segment leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func (s *Store) EventLeaderboard(ctx context.Context, eventID string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT es.user_id, COALESCE(u.display_name, es.user_id), es.score
		 FROM event_scores es LEFT JOIN users u ON u.id = es.user_id
		 WHERE es.event_id=$1
		 ORDER BY es.score DESC, COALESCE(u.display_name, es.user_id)`, eventID)
	if err != nil {
		return nil, fmt.Errorf("event leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows pgx.Rows) ([]domain.LeaderboardEntry, error) {
	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) InsertTranscriptChunk(ctx context.Context, chunk domain.TranscriptChunk) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcript_chunks (segment_id, text, started_at, ended_at, chunk_index)
		 VALUES ($1, $2, $3, $4,
		   (SELECT COALESCE(MAX(chunk_index)+1, 0) FROM transcript_chunks WHERE segment_id=$1))`,
		chunk.SegmentID, chunk.Text, chunk.StartedAt, chunk.EndedAt)
	if err != nil {
		return fmt.Errorf("insert transcript chunk: %w", err)
	}
	return nil
}
