// Package hub holds the process-wide registry of live event sessions: the
// shared GameState and the broadcast bus for each running event. The hub is
// the only owner of cross-connection mutable state; protocol handlers read
// snapshots and submit mutations through its methods, never touching a live
// GameState directly.
package hub

import (
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// busCapacity bounds each subscriber channel. Subscribers that fall behind
// lose their oldest unread messages instead of blocking publishers; clients
// resynchronize from the next state-bearing message.
const busCapacity = 100

// GameState is the per-event shared quiz state. At most one question is
// active at a time; Answers is cleared exactly when a new question activates.
type GameState struct {
	EventID           string
	CurrentSegmentID  string
	CurrentQuestionID string
	QuestionIndex     int
	QuestionStartedAt time.Time
	TimeLimitMS       int64
	Phase             domain.QuizPhase
	Participants      map[string]domain.Participant
	Answers           map[string]string
	ParticipantCount  int
	AllAnsweredSent   bool
}

// Subscription is a handle onto an event's broadcast bus.
type Subscription struct {
	C      <-chan domain.Message
	Cancel func()
}

type session struct {
	mu          sync.RWMutex
	state       GameState
	counted     map[string]bool
	subscribers map[chan domain.Message]struct{}
	strokes     []domain.Stroke
}

// Hub is the registry of live event sessions keyed by event id.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func New() *Hub {
	return &Hub{sessions: make(map[string]*session)}
}

// GetOrCreate returns a new subscription to the event's bus, creating a fresh
// GameState and bus on first call. Idempotent with respect to state: two
// callers with the same event id always share one GameState.
func (h *Hub) GetOrCreate(eventID string) *Subscription {
	s := h.getOrCreateSession(eventID)
	return s.subscribe()
}

func (h *Hub) getOrCreateSession(eventID string) *session {
	h.mu.RLock()
	s, ok := h.sessions[eventID]
	h.mu.RUnlock()
	if ok {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[eventID]; ok {
		return s
	}
	s = &session{
		state: GameState{
			EventID:      eventID,
			Participants: make(map[string]domain.Participant),
			Answers:      make(map[string]string),
		},
		counted:     make(map[string]bool),
		subscribers: make(map[chan domain.Message]struct{}),
	}
	h.sessions[eventID] = s
	return s
}

func (h *Hub) get(eventID string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[eventID]
	return s, ok
}

// DeleteIfEmpty drops a session that has no participants and no subscribers,
// reporting whether it was removed.
func (h *Hub) DeleteIfEmpty(eventID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[eventID]
	if !ok {
		return false
	}
	s.mu.RLock()
	empty := len(s.state.Participants) == 0 && len(s.subscribers) == 0
	s.mu.RUnlock()
	if empty {
		delete(h.sessions, eventID)
	}
	return empty
}

// Snapshot returns a copy of the event's GameState. Callers never receive a
// live reference, so reads cannot re-enter the session lock.
func (h *Hub) Snapshot(eventID string) (GameState, bool) {
	s, ok := h.get(eventID)
	if !ok {
		return GameState{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), true
}

// Mutate applies update to the event's GameState under a single exclusive
// critical section, so compound updates (question id + timestamp + time
// limit) are never observed half-applied.
func (h *Hub) Mutate(eventID string, update func(*GameState)) bool {
	s, ok := h.get(eventID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.state)
	return true
}

// AddParticipant registers a participant. countsTowardTotal is false when the
// joiner is the active segment's presenter, who is excluded from the
// participant total used by the all-answered check. The flag is recorded per
// participant so removal adjusts the count the same way the add did, even
// after the presenter role moves mid-event.
func (h *Hub) AddParticipant(eventID string, p domain.Participant, countsTowardTotal bool) {
	s := h.getOrCreateSession(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.Participants[p.UserID]; !exists {
		if countsTowardTotal {
			s.state.ParticipantCount++
		}
		s.counted[p.UserID] = countsTowardTotal
	}
	s.state.Participants[p.UserID] = p
}

// RemoveParticipant deletes a participant and purges their pending answer,
// decrementing the participant total only if the add counted them.
func (h *Hub) RemoveParticipant(eventID, userID string) bool {
	s, ok := h.get(eventID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.Participants[userID]; !exists {
		return false
	}
	delete(s.state.Participants, userID)
	delete(s.state.Answers, userID)
	if s.counted[userID] && s.state.ParticipantCount > 0 {
		s.state.ParticipantCount--
	}
	delete(s.counted, userID)
	return true
}

// SetPhase updates the quiz phase alone.
func (h *Hub) SetPhase(eventID string, phase domain.QuizPhase) {
	h.Mutate(eventID, func(gs *GameState) { gs.Phase = phase })
}

// Broadcast publishes a message to every current subscriber of the event's
// bus. Best effort: no acknowledgment, no retry, at most once per subscriber.
func (h *Hub) Broadcast(eventID string, msg domain.Message) {
	s, ok := h.get(eventID)
	if !ok {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.publishLocked(msg)
}

func (s *session) subscribe() *Subscription {
	ch := make(chan domain.Message, busCapacity)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return &Subscription{C: ch, Cancel: cancel}
}

func (s *session) publishLocked(msg domain.Message) {
	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			// Full buffer: drop the oldest unread message and retry so slow
			// subscribers lose history instead of stalling the publisher.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

func (s *session) snapshotLocked() GameState {
	snap := s.state
	snap.Participants = make(map[string]domain.Participant, len(s.state.Participants))
	for id, p := range s.state.Participants {
		snap.Participants[id] = p
	}
	snap.Answers = make(map[string]string, len(s.state.Answers))
	for id, a := range s.state.Answers {
		snap.Answers[id] = a
	}
	return snap
}
