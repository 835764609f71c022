// Package questiongen turns transcript deltas into scored, stored quiz
// questions and owns the cached fake-answer sets.
package questiongen

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"livequiz-service/internal/ai"
	"livequiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// minDeltaLength is the least new transcript text worth generating from.
const minDeltaLength = 50

// acceptThreshold is the quality score a question must exceed to be stored.
const acceptThreshold = 0.6

// defaultFakeAnswers is how many distractors accompany the correct answer.
const defaultFakeAnswers = 3

// Store persists accepted questions; the implementation assigns the next
// order index within the segment.
type Store interface {
	InsertQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
}

// AnswerCache stores a question's generated answer set (Redis in production,
// in-memory otherwise).
type AnswerCache interface {
	Get(ctx context.Context, questionID string) ([]domain.GeneratedAnswer, bool, error)
	Put(ctx context.Context, questionID string, answers []domain.GeneratedAnswer) error
}

// Service generates questions from transcripts via the AI provider.
type Service struct {
	provider     ai.Provider
	store        Store
	cache        AnswerCache
	blendAIScore bool
	timeLimitMS  int64

	sf  singleflight.Group
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewService(provider ai.Provider, store Store, cache AnswerCache, blendAIScore bool, timeLimitMS int64) *Service {
	if timeLimitMS <= 0 {
		timeLimitMS = 30000
	}
	return &Service{
		provider:     provider,
		store:        store,
		cache:        cache,
		blendAIScore: blendAIScore,
		timeLimitMS:  timeLimitMS,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateFromTranscript asks the provider for a question from the new
// transcript delta. Returns the scored candidate (nil when the delta is too
// short or the provider found nothing) and the stored question when the
// score clears the acceptance threshold.
func (s *Service) GenerateFromTranscript(ctx context.Context, segmentID, priorContext, delta string) (*domain.GeneratedQuestionWithScore, *domain.Question, error) {
	if len(strings.TrimSpace(delta)) < minDeltaLength {
		return nil, nil, nil
	}

	candidate, err := s.provider.AnalyzeAndGenerateQuestion(ctx, priorContext, delta)
	if err != nil {
		return nil, nil, err
	}
	if candidate == nil {
		return nil, nil, nil
	}

	transcript := priorContext + " " + delta
	score := QualityScore(candidate.Question, candidate.CorrectAnswer, transcript)
	if s.blendAIScore && candidate.Confidence > 0 {
		score = clamp01((score + candidate.Confidence) / 2)
	}

	generated := &domain.GeneratedQuestionWithScore{
		Question:         candidate.Question,
		CorrectAnswer:    candidate.CorrectAnswer,
		TopicSummary:     candidate.TopicSummary,
		SourceTranscript: delta,
		QualityScore:     score,
	}
	if score <= acceptThreshold {
		return generated, nil, nil
	}

	stored, err := s.store.InsertQuestion(ctx, domain.Question{
		SegmentID:     segmentID,
		Text:          candidate.Question,
		CorrectAnswer: candidate.CorrectAnswer,
		TimeLimitMS:   s.timeLimitMS,
	})
	if err != nil {
		return generated, nil, err
	}
	return generated, &stored, nil
}

// AnswersForQuestion returns the question's answer option set, generating
// fakes exactly once per question and caching the result. Content is
// identical across calls; display order is re-shuffled per call so late
// joiners see the same options without a fixed correct-answer position.
func (s *Service) AnswersForQuestion(ctx context.Context, q domain.Question) ([]domain.GeneratedAnswer, error) {
	if cached, ok, err := s.cache.Get(ctx, q.ID); err == nil && ok {
		return s.shuffled(cached), nil
	}

	result, err, _ := s.sf.Do(q.ID, func() (interface{}, error) {
		if cached, ok, err := s.cache.Get(ctx, q.ID); err == nil && ok {
			return cached, nil
		}

		fakes, err := s.provider.GenerateFakeAnswers(ctx, q.Text, q.CorrectAnswer, defaultFakeAnswers)
		if err != nil {
			return nil, err
		}

		answers := make([]domain.GeneratedAnswer, 0, len(fakes)+1)
		answers = append(answers, domain.GeneratedAnswer{Text: q.CorrectAnswer, IsCorrect: true})
		for _, fake := range fakes {
			answers = append(answers, domain.GeneratedAnswer{Text: fake})
		}
		for i := range answers {
			answers[i].DisplayOrder = i
		}

		if err := s.cache.Put(ctx, q.ID, answers); err != nil {
			return nil, err
		}
		return answers, nil
	})
	if err != nil {
		return nil, err
	}
	return s.shuffled(result.([]domain.GeneratedAnswer)), nil
}

func (s *Service) shuffled(answers []domain.GeneratedAnswer) []domain.GeneratedAnswer {
	out := make([]domain.GeneratedAnswer, len(answers))
	copy(out, answers)
	s.mu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.mu.Unlock()
	for i := range out {
		out[i].DisplayOrder = i
	}
	return out
}

var interrogatives = []string{"what", "who", "when", "where", "why", "how"}

// QualityScore is the heuristic [0,1] confidence that a generated question is
// usable. Always computed; an AI-assisted score may be blended in on top.
func QualityScore(question, answer, transcript string) float64 {
	score := 0.5

	if qlen := len(question); qlen >= 10 && qlen <= 100 {
		score += 0.1
	}
	if alen := len(answer); alen >= 1 && alen <= 50 {
		score += 0.1
	}

	lowerQ := strings.ToLower(question)
	for _, word := range interrogatives {
		if strings.Contains(lowerQ, word) {
			score += 0.1
			break
		}
	}

	if answer != "" && strings.Contains(strings.ToLower(transcript), strings.ToLower(answer)) {
		score += 0.2
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
