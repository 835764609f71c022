package domain

import "time"

// QuizPhase is the stage of question delivery currently shown to participants.
type QuizPhase string

const (
	PhaseShowingQuestion    QuizPhase = "showing_question"
	PhaseRevealingAnswer    QuizPhase = "revealing_answer"
	PhaseShowingLeaderboard QuizPhase = "showing_leaderboard"
	PhaseSegmentComplete    QuizPhase = "segment_complete"
)

// Participant represents a connected quiz participant.
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Event is a top-level live session joined via a short code.
type Event struct {
	ID          string
	HostUserID  string
	SessionCode string
	Finished    bool
}

// Segment is one presenter's portion of an event.
type Segment struct {
	ID              string
	EventID         string
	PresenterUserID string
	OrderIndex      int
	Completed       bool
}

// Question is a stored multiple-choice question within a segment.
type Question struct {
	ID            string
	SegmentID     string
	Text          string
	CorrectAnswer string
	OrderIndex    int
	TimeLimitMS   int64
}

// GeneratedAnswer is one display option for a question. A question's answer
// set (correct answer plus fakes) is generated once and cached; reads
// re-shuffle display order but never change content.
type GeneratedAnswer struct {
	Text         string `json:"text"`
	IsCorrect    bool   `json:"isCorrect"`
	DisplayOrder int    `json:"displayOrder"`
}

// GeneratedQuestionWithScore is the output of question generation before the
// acceptance-threshold check.
type GeneratedQuestionWithScore struct {
	Question         string
	CorrectAnswer    string
	TopicSummary     string
	SourceTranscript string
	QualityScore     float64
}

// TranscriptChunk is an ordered, append-only transcript fragment for a segment.
type TranscriptChunk struct {
	SegmentID  string
	Text       string
	StartedAt  time.Time
	EndedAt    time.Time
	ChunkIndex int
}

// AnswerRecord is a participant's submitted answer for one question.
type AnswerRecord struct {
	SegmentID      string
	QuestionID     string
	UserID         string
	SelectedAnswer string
	ResponseTimeMS int64
	IsCorrect      bool
	Points         int
}

// LeaderboardEntry is a snapshot-friendly ranking row.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// Stroke is one whiteboard stroke relayed between participants. The relay is
// store-and-broadcast only; the server never interprets the path data.
type Stroke struct {
	UserID string        `json:"userId"`
	Color  string        `json:"color,omitempty"`
	Width  float64       `json:"width,omitempty"`
	Points []StrokePoint `json:"points"`
}

// StrokePoint is a single coordinate of a stroke path.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
