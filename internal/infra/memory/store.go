// Package memory provides in-memory implementations of the persistence
// contracts, used by tests and by demo runs without Postgres/Redis.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"livequiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store and questiongen.Store.
type Store struct {
	mu          sync.RWMutex
	events      map[string]domain.Event
	users       map[string]domain.Participant
	segments    map[string]domain.Segment
	questions   map[string]domain.Question
	answers     map[string]domain.AnswerRecord
	segScores   map[string]map[string]int
	eventScores map[string]map[string]int
	chunks      map[string][]domain.TranscriptChunk
	nextID      int
}

func NewStore() *Store {
	return &Store{
		events:      make(map[string]domain.Event),
		users:       make(map[string]domain.Participant),
		segments:    make(map[string]domain.Segment),
		questions:   make(map[string]domain.Question),
		answers:     make(map[string]domain.AnswerRecord),
		segScores:   make(map[string]map[string]int),
		eventScores: make(map[string]map[string]int),
		chunks:      make(map[string][]domain.TranscriptChunk),
	}
}

// Seeding helpers for tests and demo data.

func (s *Store) AddEvent(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

func (s *Store) AddUser(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = p
}

func (s *Store) AddSegment(seg domain.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.ID] = seg
}

func (s *Store) AddQuestion(q domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *Store) EventByID(_ context.Context, eventID string) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, nil
}

func (s *Store) EventBySessionCode(_ context.Context, code string) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events {
		if ev.SessionCode == code {
			return ev, nil
		}
	}
	return domain.Event{}, domain.ErrEventNotFound
}

func (s *Store) UserIdentity(_ context.Context, userID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.users[userID]; ok {
		return p, nil
	}
	// Unknown users still get a usable identity; display name falls back to id.
	return domain.Participant{UserID: userID, DisplayName: userID}, nil
}

func (s *Store) SegmentByID(_ context.Context, segmentID string) (domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[segmentID]
	if !ok {
		return domain.Segment{}, domain.ErrSegmentNotFound
	}
	return seg, nil
}

func (s *Store) SegmentsByEvent(_ context.Context, eventID string) ([]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Segment
	for _, seg := range s.segments {
		if seg.EventID == eventID {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) SetSegmentPresenter(_ context.Context, segmentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[segmentID]
	if !ok {
		return domain.ErrSegmentNotFound
	}
	seg.PresenterUserID = userID
	s.segments[segmentID] = seg
	return nil
}

func (s *Store) MarkSegmentCompleted(_ context.Context, segmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[segmentID]
	if !ok {
		return domain.ErrSegmentNotFound
	}
	seg.Completed = true
	s.segments[segmentID] = seg
	return nil
}

func (s *Store) MarkEventFinished(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.Finished = true
	s.events[eventID] = ev
	return nil
}

func (s *Store) QuestionByID(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) QuestionsBySegmentOrdered(_ context.Context, segmentID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if q.SegmentID == segmentID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) InsertQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 0
	for _, existing := range s.questions {
		if existing.SegmentID == q.SegmentID && existing.OrderIndex >= next {
			next = existing.OrderIndex + 1
		}
	}
	s.nextID++
	q.ID = fmt.Sprintf("gen-q-%d", s.nextID)
	q.OrderIndex = next
	s.questions[q.ID] = q
	return q, nil
}

func (s *Store) UpsertAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[rec.SegmentID+"|"+rec.QuestionID+"|"+rec.UserID] = rec
	return nil
}

// AnswerRecords returns all stored answers; test helper.
func (s *Store) AnswerRecords() []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0, len(s.answers))
	for _, rec := range s.answers {
		out = append(out, rec)
	}
	return out
}

func (s *Store) IncrementSegmentScore(_ context.Context, segmentID, userID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segScores[segmentID] == nil {
		s.segScores[segmentID] = make(map[string]int)
	}
	s.segScores[segmentID][userID] += points
	return nil
}

func (s *Store) IncrementEventScore(_ context.Context, eventID, userID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventScores[eventID] == nil {
		s.eventScores[eventID] = make(map[string]int)
	}
	s.eventScores[eventID][userID] += points
	return nil
}

func (s *Store) SegmentLeaderboard(_ context.Context, segmentID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankLocked(s.segScores[segmentID]), nil
}

func (s *Store) EventLeaderboard(_ context.Context, eventID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankLocked(s.eventScores[eventID]), nil
}

func (s *Store) rankLocked(scores map[string]int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for userID, score := range scores {
		name := userID
		if p, ok := s.users[userID]; ok {
			name = p.DisplayName
		}
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, DisplayName: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (s *Store) InsertTranscriptChunk(_ context.Context, chunk domain.TranscriptChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk.ChunkIndex = len(s.chunks[chunk.SegmentID])
	s.chunks[chunk.SegmentID] = append(s.chunks[chunk.SegmentID], chunk)
	return nil
}

// TranscriptChunks returns a segment's chunks in order; test helper.
func (s *Store) TranscriptChunks(segmentID string) []domain.TranscriptChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TranscriptChunk, len(s.chunks[segmentID]))
	copy(out, s.chunks[segmentID])
	return out
}
