package questiongen_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"livequiz-service/internal/ai"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	"livequiz-service/internal/questiongen"
)

const longDelta = "Today we are talking about the history of France and its capital city Paris, founded on the Seine."

func TestQualityScoreHeuristics(t *testing.T) {
	// Everything in its favor: good lengths, interrogative, answer in transcript.
	full := questiongen.QualityScore(
		"What is the capital of France?",
		"Paris",
		"the capital of france is paris",
	)
	if full < 0.99 {
		t.Fatalf("expected maximal heuristic score, got %f", full)
	}

	// Nothing in its favor beyond the base.
	base := questiongen.QualityScore(
		"x",
		strings.Repeat("a", 60),
		"unrelated transcript",
	)
	if base != 0.5 {
		t.Fatalf("expected bare base score 0.5, got %f", base)
	}

	if s := questiongen.QualityScore("", "", ""); s < 0 || s > 1 {
		t.Fatalf("score out of [0,1]: %f", s)
	}
}

func TestGenerateSkipsShortDelta(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestGen(provider)

	generated, stored, err := svc.GenerateFromTranscript(context.Background(), "seg-1", "", "too short")
	if err != nil || generated != nil || stored != nil {
		t.Fatalf("expected silent skip for short delta, got %v %v %v", generated, stored, err)
	}
	if provider.analyzeCalls != 0 {
		t.Fatalf("provider must not be called for short delta")
	}
}

func TestGenerateStoresAboveThreshold(t *testing.T) {
	provider := &fakeProvider{candidate: &ai.Candidate{
		Question:      "What is the capital of France?",
		CorrectAnswer: "Paris",
		TopicSummary:  "French geography",
	}}
	svc, store := newTestGen(provider)

	generated, stored, err := svc.GenerateFromTranscript(context.Background(), "seg-1", "", longDelta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if generated == nil || generated.QualityScore <= 0.6 {
		t.Fatalf("expected accepted candidate, got %+v", generated)
	}
	if stored == nil || stored.ID == "" || stored.SegmentID != "seg-1" {
		t.Fatalf("expected stored question with id and segment, got %+v", stored)
	}
	if stored.TimeLimitMS != 30000 {
		t.Fatalf("expected default time limit on stored question, got %d", stored.TimeLimitMS)
	}

	persisted, _ := store.QuestionsBySegmentOrdered(context.Background(), "seg-1")
	if len(persisted) != 1 {
		t.Fatalf("expected one persisted question, got %d", len(persisted))
	}
}

func TestGenerateRejectsLowScore(t *testing.T) {
	provider := &fakeProvider{candidate: &ai.Candidate{
		Question:      "x",
		CorrectAnswer: strings.Repeat("a", 60),
	}}
	svc, store := newTestGen(provider)

	generated, stored, err := svc.GenerateFromTranscript(context.Background(), "seg-1", "", longDelta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if generated == nil || stored != nil {
		t.Fatalf("expected scored-but-rejected candidate, got %+v stored=%v", generated, stored)
	}

	persisted, _ := store.QuestionsBySegmentOrdered(context.Background(), "seg-1")
	if len(persisted) != 0 {
		t.Fatalf("rejected question must not be persisted, got %d", len(persisted))
	}
}

func TestGenerateNoCandidateIsNotAnError(t *testing.T) {
	provider := &fakeProvider{} // nil candidate, nil error
	svc, _ := newTestGen(provider)

	generated, stored, err := svc.GenerateFromTranscript(context.Background(), "seg-1", "", longDelta)
	if err != nil || generated != nil || stored != nil {
		t.Fatalf("expected empty result, got %v %v %v", generated, stored, err)
	}
	if provider.analyzeCalls != 1 {
		t.Fatalf("expected one provider call, got %d", provider.analyzeCalls)
	}
}

func TestAnswersGeneratedOncePerQuestion(t *testing.T) {
	provider := &fakeProvider{fakes: []string{"Lyon", "Marseille", "Nice"}}
	svc, _ := newTestGen(provider)

	q := domain.Question{ID: "q1", Text: "What is the capital of France?", CorrectAnswer: "Paris"}

	first, err := svc.AnswersForQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	second, err := svc.AnswersForQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("answers again: %v", err)
	}

	if provider.fakeCalls != 1 {
		t.Fatalf("expected distractors generated once, got %d calls", provider.fakeCalls)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected 4 options, got %d and %d", len(first), len(second))
	}
	if answerSet(first) != answerSet(second) {
		t.Fatalf("content must be identical across reads: %v vs %v", first, second)
	}
	correct := 0
	for _, a := range first {
		if a.IsCorrect {
			correct++
			if a.Text != "Paris" {
				t.Fatalf("wrong correct answer %q", a.Text)
			}
		}
	}
	if correct != 1 {
		t.Fatalf("expected exactly one correct option, got %d", correct)
	}
}

func TestAnswersSingleFlight(t *testing.T) {
	provider := &fakeProvider{fakes: []string{"Lyon", "Marseille", "Nice"}}
	svc, _ := newTestGen(provider)
	q := domain.Question{ID: "q1", Text: "Capital of France?", CorrectAnswer: "Paris"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AnswersForQuestion(context.Background(), q); err != nil {
				t.Errorf("answers: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.fakeCalls != 1 {
		t.Fatalf("expected concurrent reads collapsed into one generation, got %d", provider.fakeCalls)
	}
}

func answerSet(answers []domain.GeneratedAnswer) string {
	texts := make([]string, 0, len(answers))
	for _, a := range answers {
		texts = append(texts, a.Text)
	}
	// Order-insensitive fingerprint.
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			if texts[j] < texts[i] {
				texts[i], texts[j] = texts[j], texts[i]
			}
		}
	}
	return strings.Join(texts, "|")
}

type fakeProvider struct {
	mu           sync.Mutex
	candidate    *ai.Candidate
	fakes        []string
	analyzeCalls int
	fakeCalls    int
}

func (p *fakeProvider) GenerateFakeAnswers(_ context.Context, _, _ string, _ int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fakeCalls++
	return p.fakes, nil
}

func (p *fakeProvider) AnalyzeAndGenerateQuestion(_ context.Context, _, _ string) (*ai.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyzeCalls++
	return p.candidate, nil
}

func newTestGen(provider *fakeProvider) (*questiongen.Service, *memory.Store) {
	store := memory.NewStore()
	return questiongen.NewService(provider, store, memory.NewAnswerCache(), false, 30000), store
}
