// Package ai abstracts the question-generation capabilities of an LLM
// vendor. The orchestration layer depends only on Provider, so vendors are
// interchangeable and tests can plug in doubles.
package ai

import "context"

// Candidate is a question proposed by the provider from transcript text.
// Confidence is the provider's own [0,1] estimate when it supplies one, or 0.
type Candidate struct {
	Question      string  `json:"question"`
	CorrectAnswer string  `json:"correct_answer"`
	TopicSummary  string  `json:"topic_summary"`
	Confidence    float64 `json:"confidence"`
}

// Provider is the capability contract for AI question generation.
type Provider interface {
	// GenerateFakeAnswers returns count plausible-but-wrong distractors for a
	// question with the given correct answer.
	GenerateFakeAnswers(ctx context.Context, question, correctAnswer string, count int) ([]string, error)

	// AnalyzeAndGenerateQuestion proposes one question from the transcript
	// delta, given prior context. A (nil, nil) return means the provider
	// found no good question in the material; that is a normal empty result,
	// not an error.
	AnalyzeAndGenerateQuestion(ctx context.Context, priorContext, delta string) (*Candidate, error)
}
