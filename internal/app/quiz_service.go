package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/hub"
)

// Liveness marks running event sessions in an external registry (Redis).
// Best effort; all calls are fire-and-forget.
type Liveness interface {
	MarkLive(eventID string)
	MarkStopped(eventID string)
}

// QuizService implements the participant/presenter quiz protocol on top of
// the session hub. All shared-state mutation goes through the hub; the
// service itself is stateless and safe for concurrent use from any number of
// connection handlers.
type QuizService struct {
	hub      *hub.Hub
	store    Store
	answers  AnswerSource
	liveness Liveness
}

func NewQuizService(h *hub.Hub, store Store, answers AnswerSource) *QuizService {
	return &QuizService{hub: h, store: store, answers: answers}
}

// SetLiveness installs an optional session liveness marker.
func (s *QuizService) SetLiveness(l Liveness) { s.liveness = l }

// Hub exposes the session hub for transport wiring (subscriptions, canvas).
func (s *QuizService) Hub() *hub.Hub { return s.hub }

// JoinResult carries the direct messages for the joining connection plus the
// Joined payload the caller broadcasts once those are delivered, so the
// joiner never sees their own announcement ahead of the Connected snapshot.
type JoinResult struct {
	Participant domain.Participant
	Connected   domain.ConnectedPayload
	Joined      domain.ParticipantJoinedPayload
	IsPresenter bool
}

// Join resolves the joiner's identity and registers them in the hub. The
// presenter of the active segment is excluded from the participant total
// used by the all-answered check, resolved the same way quiz commands
// resolve the active segment so the exclusion holds before the first
// question activates.
func (s *QuizService) Join(ctx context.Context, eventID, userID, sessionCode string) (JoinResult, error) {
	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return JoinResult{}, s.sanitize("load event", err)
	}
	if sessionCode != "" && event.SessionCode != "" && !strings.EqualFold(sessionCode, event.SessionCode) {
		return JoinResult{}, domain.ErrEventNotFound
	}

	identity, err := s.store.UserIdentity(ctx, userID)
	if err != nil {
		return JoinResult{}, s.sanitize("resolve identity", err)
	}

	isPresenter, err := s.isActivePresenter(ctx, eventID, userID)
	if err != nil {
		return JoinResult{}, s.sanitize("resolve presenter", err)
	}

	s.hub.AddParticipant(eventID, identity, !isPresenter)
	if s.liveness != nil {
		s.liveness.MarkLive(eventID)
	}

	snap, _ := s.hub.Snapshot(eventID)
	participants := make([]domain.Participant, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		participants = append(participants, p)
	}

	return JoinResult{
		Participant: identity,
		Connected: domain.ConnectedPayload{
			EventID:       eventID,
			Participants:  participants,
			Phase:         snap.Phase,
			QuestionIndex: snap.QuestionIndex,
		},
		Joined: domain.ParticipantJoinedPayload{
			Participant:      identity,
			ParticipantCount: snap.ParticipantCount,
		},
		IsPresenter: isPresenter,
	}, nil
}

// NextQuestion advances to the segment's next question (or starts the first
// one). Controller only. Broadcasts GameEnded when no questions remain.
func (s *QuizService) NextQuestion(ctx context.Context, eventID, userID string) error {
	segment, err := s.resolveActiveSegment(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.authorizeController(ctx, eventID, segment, userID); err != nil {
		return err
	}

	questions, err := s.store.QuestionsBySegmentOrdered(ctx, segment.ID)
	if err != nil {
		return s.internalError("list questions", err)
	}

	snap, _ := s.hub.Snapshot(eventID)
	next := 0
	if snap.CurrentSegmentID == segment.ID && snap.CurrentQuestionID != "" {
		next = snap.QuestionIndex + 1
	}
	if next >= len(questions) {
		s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgGameEnded, Payload: domain.GameEndedPayload{SegmentID: segment.ID}})
		return nil
	}
	question := questions[next]

	options, err := s.answers.AnswersForQuestion(ctx, question)
	if err != nil {
		return s.internalError("resolve answers", err)
	}

	// One exclusive critical section: question id, index, start time, time
	// limit and the answer reset must never be observed separately.
	s.hub.Mutate(eventID, func(gs *hub.GameState) {
		gs.CurrentSegmentID = segment.ID
		gs.CurrentQuestionID = question.ID
		gs.QuestionIndex = next
		gs.QuestionStartedAt = time.Now()
		gs.TimeLimitMS = question.TimeLimitMS
		gs.Answers = make(map[string]string)
		gs.AllAnsweredSent = false
		gs.Phase = domain.PhaseShowingQuestion
	})

	if next == 0 {
		s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgGameStarted})
	}
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgPhaseChanged, Payload: domain.PhaseChangedPayload{
		Phase:          domain.PhaseShowingQuestion,
		QuestionIndex:  next,
		TotalQuestions: len(questions),
	}})
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgQuestion, Payload: domain.QuestionPayload{
		QuestionID:     question.ID,
		QuestionNumber: next + 1,
		TotalQuestions: len(questions),
		Text:           question.Text,
		Answers:        options,
		TimeLimitMS:    question.TimeLimitMS,
	}})
	return nil
}

// SubmitAnswer records an answer for the active question. Submission is
// idempotent per (segment, question, user): resubmission overwrites.
func (s *QuizService) SubmitAnswer(ctx context.Context, eventID, userID, questionID, selected string, responseTimeMS int64) error {
	snap, ok := s.hub.Snapshot(eventID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if _, joined := snap.Participants[userID]; !joined {
		return domain.ErrParticipantNotFound
	}
	if snap.CurrentQuestionID == "" {
		return domain.ErrNoActiveQuestion
	}
	if questionID != snap.CurrentQuestionID {
		return domain.ErrQuestionMismatch
	}

	question, err := s.store.QuestionByID(ctx, questionID)
	if err != nil {
		return s.sanitize("load question", err)
	}

	correct := strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(question.CorrectAnswer))
	points := 0
	if correct {
		points = SpeedScore(snap.TimeLimitMS, responseTimeMS)
	}

	rec := domain.AnswerRecord{
		SegmentID:      question.SegmentID,
		QuestionID:     questionID,
		UserID:         userID,
		SelectedAnswer: selected,
		ResponseTimeMS: responseTimeMS,
		IsCorrect:      correct,
		Points:         points,
	}
	if err := s.store.UpsertAnswer(ctx, rec); err != nil {
		return s.internalError("upsert answer", err)
	}
	// Aggregates are independent commands; a partial failure is logged, not
	// rolled back.
	if err := s.store.IncrementSegmentScore(ctx, question.SegmentID, userID, points); err != nil {
		return s.internalError("increment segment score", err)
	}
	if err := s.store.IncrementEventScore(ctx, eventID, userID, points); err != nil {
		return s.internalError("increment event score", err)
	}

	var received, total int
	fireAllAnswered := false
	s.hub.Mutate(eventID, func(gs *hub.GameState) {
		gs.Answers[userID] = selected
		received = len(gs.Answers)
		total = gs.ParticipantCount
		if total > 0 && received >= total && !gs.AllAnsweredSent {
			gs.AllAnsweredSent = true
			fireAllAnswered = true
		}
	})

	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgAnswerReceived, Payload: domain.AnswerReceivedPayload{
		UserID:      userID,
		AnswerCount: received,
	}})
	if fireAllAnswered {
		s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgAllAnswered, Payload: domain.AllAnsweredPayload{
			AnswerCount:       received,
			TotalParticipants: total,
		}})
	}
	return nil
}

// RevealAnswer computes the answer distribution plus fresh leaderboards and
// broadcasts them with the phase change.
func (s *QuizService) RevealAnswer(ctx context.Context, eventID, userID string) error {
	snap, ok := s.hub.Snapshot(eventID)
	if !ok || snap.CurrentQuestionID == "" {
		return domain.ErrNoActiveQuestion
	}

	question, err := s.store.QuestionByID(ctx, snap.CurrentQuestionID)
	if err != nil {
		return s.sanitize("load question", err)
	}

	segment, segErr := s.store.SegmentByID(ctx, question.SegmentID)
	if segErr != nil {
		// No resolvable segment: fall back to host-only authorization.
		event, err := s.store.EventByID(ctx, eventID)
		if err != nil {
			return s.sanitize("load event", err)
		}
		if event.HostUserID != userID {
			return domain.ErrNotController
		}
	} else if err := s.authorizeController(ctx, eventID, segment, userID); err != nil {
		return err
	}

	options, err := s.answers.AnswersForQuestion(ctx, question)
	if err != nil {
		return s.internalError("resolve answers", err)
	}
	distribution := make(map[string]int, len(options))
	for _, opt := range options {
		distribution[opt.Text] = 0
	}
	for _, submitted := range snap.Answers {
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(opt.Text)) {
				distribution[opt.Text]++
				break
			}
		}
	}

	segmentLB, err := s.store.SegmentLeaderboard(ctx, question.SegmentID)
	if err != nil {
		return s.internalError("segment leaderboard", err)
	}
	eventLB, err := s.store.EventLeaderboard(ctx, eventID)
	if err != nil {
		return s.internalError("event leaderboard", err)
	}

	s.hub.SetPhase(eventID, domain.PhaseRevealingAnswer)
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgPhaseChanged, Payload: domain.PhaseChangedPayload{
		Phase:         domain.PhaseRevealingAnswer,
		QuestionIndex: snap.QuestionIndex,
	}})
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgReveal, Payload: domain.RevealPayload{
		QuestionID:         question.ID,
		CorrectAnswer:      question.CorrectAnswer,
		Distribution:       distribution,
		SegmentLeaderboard: segmentLB,
		EventLeaderboard:   eventLB,
	}})
	return nil
}

// ShowLeaderboard broadcasts the current segment leaderboard with the phase
// change.
func (s *QuizService) ShowLeaderboard(ctx context.Context, eventID, userID string) error {
	snap, ok := s.hub.Snapshot(eventID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	rankings := []domain.LeaderboardEntry{}
	if snap.CurrentSegmentID != "" {
		var err error
		rankings, err = s.store.SegmentLeaderboard(ctx, snap.CurrentSegmentID)
		if err != nil {
			return s.internalError("segment leaderboard", err)
		}
	}

	s.hub.SetPhase(eventID, domain.PhaseShowingLeaderboard)
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgPhaseChanged, Payload: domain.PhaseChangedPayload{
		Phase:         domain.PhaseShowingLeaderboard,
		QuestionIndex: snap.QuestionIndex,
	}})
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgLeaderboard, Payload: domain.LeaderboardPayload{Rankings: rankings}})
	return nil
}

// EndGame marks the current segment complete, broadcasts SegmentComplete, and
// finishes the whole event once every segment is done.
func (s *QuizService) EndGame(ctx context.Context, eventID, userID string) error {
	segment, err := s.resolveActiveSegment(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.authorizeController(ctx, eventID, segment, userID); err != nil {
		return err
	}

	if err := s.store.MarkSegmentCompleted(ctx, segment.ID); err != nil {
		return s.internalError("mark segment completed", err)
	}

	segmentLB, err := s.store.SegmentLeaderboard(ctx, segment.ID)
	if err != nil {
		return s.internalError("segment leaderboard", err)
	}
	eventLB, err := s.store.EventLeaderboard(ctx, eventID)
	if err != nil {
		return s.internalError("event leaderboard", err)
	}

	s.hub.Mutate(eventID, func(gs *hub.GameState) {
		gs.Phase = domain.PhaseSegmentComplete
		gs.CurrentQuestionID = ""
		gs.CurrentSegmentID = ""
		gs.QuestionIndex = 0
		gs.Answers = make(map[string]string)
		gs.AllAnsweredSent = false
	})

	payload := domain.SegmentCompletePayload{
		SegmentID:          segment.ID,
		SegmentLeaderboard: segmentLB,
		EventLeaderboard:   eventLB,
	}
	if len(segmentLB) > 0 {
		payload.SegmentWinner = &segmentLB[0]
	}
	if len(eventLB) > 0 {
		payload.EventLeader = &eventLB[0]
	}
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgSegmentComplete, Payload: payload})

	return s.checkEventComplete(ctx, eventID)
}

// PassPresenter reassigns the active segment's presenter to another
// participant, then re-checks event completion, since a hand-off can be what
// completes the last segment.
func (s *QuizService) PassPresenter(ctx context.Context, eventID, userID, nextPresenterID string) error {
	segment, err := s.resolveActiveSegment(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.authorizeController(ctx, eventID, segment, userID); err != nil {
		return err
	}

	snap, ok := s.hub.Snapshot(eventID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if _, joined := snap.Participants[nextPresenterID]; !joined {
		return domain.ErrParticipantNotFound
	}

	if err := s.store.SetSegmentPresenter(ctx, segment.ID, nextPresenterID); err != nil {
		return s.internalError("set presenter", err)
	}

	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgPresenterChanged, Payload: domain.PresenterChangedPayload{
		SegmentID:       segment.ID,
		PresenterUserID: nextPresenterID,
	}})

	return s.checkEventComplete(ctx, eventID)
}

// Disconnect removes a departing participant and broadcasts ParticipantLeft.
// The hub adjusts the participant total by the flag recorded at join time.
func (s *QuizService) Disconnect(ctx context.Context, eventID, userID string) {
	if !s.hub.RemoveParticipant(eventID, userID) {
		return
	}
	snap, _ := s.hub.Snapshot(eventID)
	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgParticipantLeft, Payload: domain.ParticipantLeftPayload{
		UserID:           userID,
		ParticipantCount: snap.ParticipantCount,
	}})
	if s.hub.DeleteIfEmpty(eventID) && s.liveness != nil {
		s.liveness.MarkStopped(eventID)
	}
}

// authorizeController permits the event host or the segment's currently
// assigned presenter. Resolved per request, never cached: presenter
// assignment can change mid-event via PassPresenter.
func (s *QuizService) authorizeController(ctx context.Context, eventID string, segment domain.Segment, userID string) error {
	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return s.sanitize("load event", err)
	}
	if event.HostUserID == userID || segment.PresenterUserID == userID {
		return nil
	}
	return domain.ErrNotController
}

// resolveActiveSegment returns the hub's current segment, or the first
// uncompleted segment by order when no question has been activated yet.
func (s *QuizService) resolveActiveSegment(ctx context.Context, eventID string) (domain.Segment, error) {
	if snap, ok := s.hub.Snapshot(eventID); ok && snap.CurrentSegmentID != "" {
		return s.store.SegmentByID(ctx, snap.CurrentSegmentID)
	}
	segments, err := s.store.SegmentsByEvent(ctx, eventID)
	if err != nil {
		return domain.Segment{}, s.sanitize("list segments", err)
	}
	for _, seg := range segments {
		if !seg.Completed {
			return seg, nil
		}
	}
	return domain.Segment{}, domain.ErrSegmentNotFound
}

func (s *QuizService) isActivePresenter(ctx context.Context, eventID, userID string) (bool, error) {
	segment, err := s.resolveActiveSegment(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrSegmentNotFound) {
			return false, nil
		}
		return false, err
	}
	return segment.PresenterUserID == userID, nil
}

func (s *QuizService) checkEventComplete(ctx context.Context, eventID string) error {
	segments, err := s.store.SegmentsByEvent(ctx, eventID)
	if err != nil {
		return s.internalError("list segments", err)
	}
	if len(segments) == 0 {
		return nil
	}
	for _, seg := range segments {
		if !seg.Completed {
			return nil
		}
	}

	if err := s.store.MarkEventFinished(ctx, eventID); err != nil {
		return s.internalError("mark event finished", err)
	}

	finalLB, err := s.store.EventLeaderboard(ctx, eventID)
	if err != nil {
		return s.internalError("event leaderboard", err)
	}
	winners := make(map[string]domain.LeaderboardEntry, len(segments))
	for _, seg := range segments {
		lb, err := s.store.SegmentLeaderboard(ctx, seg.ID)
		if err != nil {
			return s.internalError("segment leaderboard", err)
		}
		if len(lb) > 0 {
			winners[seg.ID] = lb[0]
		}
	}

	s.hub.Broadcast(eventID, domain.Message{Type: domain.MsgEventComplete, Payload: domain.EventCompletePayload{
		EventID:          eventID,
		FinalLeaderboard: finalLB,
		SegmentWinners:   winners,
	}})
	return nil
}

// sanitize passes client-visible errors through and converts everything
// else into a generic internal error with a correlation id.
func (s *QuizService) sanitize(op string, err error) error {
	if IsClientError(err) {
		return err
	}
	return s.internalError(op, err)
}

// internalError logs the cause with a short correlation id and returns a
// generic error carrying only that id. Raw internal detail never reaches
// clients.
func (s *QuizService) internalError(op string, err error) error {
	id := correlationID()
	log.Printf("quiz: %s failed corr=%s: %v", op, id, err)
	return fmt.Errorf("internal error (ref %s)", id)
}

func correlationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// IsClientError reports whether err should be shown to the sender verbatim
// (validation, authorization, not-found) rather than as a generic message.
func IsClientError(err error) bool {
	for _, known := range []error{
		domain.ErrEventNotFound,
		domain.ErrSessionNotFound,
		domain.ErrParticipantNotFound,
		domain.ErrSegmentNotFound,
		domain.ErrQuestionNotFound,
		domain.ErrNoActiveQuestion,
		domain.ErrQuestionMismatch,
		domain.ErrNotController,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
