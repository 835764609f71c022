package domain

// Payloads carried inside Message envelopes. Field names match what the web
// client renders; question numbers are 1-indexed for display.

type ConnectedPayload struct {
	EventID       string        `json:"eventId"`
	Participants  []Participant `json:"participants"`
	Phase         QuizPhase     `json:"phase,omitempty"`
	QuestionIndex int           `json:"questionIndex"`
}

type ParticipantJoinedPayload struct {
	Participant      Participant `json:"participant"`
	ParticipantCount int         `json:"participantCount"`
}

type ParticipantLeftPayload struct {
	UserID           string `json:"userId"`
	ParticipantCount int    `json:"participantCount"`
}

type QuestionPayload struct {
	QuestionID     string            `json:"questionId"`
	QuestionNumber int               `json:"questionNumber"`
	TotalQuestions int               `json:"totalQuestions"`
	Text           string            `json:"text"`
	Answers        []GeneratedAnswer `json:"answers"`
	TimeLimitMS    int64             `json:"timeLimit"`
}

type AnswerReceivedPayload struct {
	UserID      string `json:"userId"`
	AnswerCount int    `json:"answerCount"`
}

type AllAnsweredPayload struct {
	AnswerCount       int `json:"answerCount"`
	TotalParticipants int `json:"totalParticipants"`
}

type PhaseChangedPayload struct {
	Phase          QuizPhase `json:"phase"`
	QuestionIndex  int       `json:"questionIndex"`
	TotalQuestions int       `json:"totalQuestions"`
}

type RevealPayload struct {
	QuestionID         string             `json:"questionId"`
	CorrectAnswer      string             `json:"correctAnswer"`
	Distribution       map[string]int     `json:"distribution"`
	SegmentLeaderboard []LeaderboardEntry `json:"segmentLeaderboard"`
	EventLeaderboard   []LeaderboardEntry `json:"eventLeaderboard"`
}

type LeaderboardPayload struct {
	Rankings []LeaderboardEntry `json:"rankings"`
}

type PresenterChangedPayload struct {
	SegmentID       string `json:"segmentId"`
	PresenterUserID string `json:"presenterUserId"`
}

type SegmentCompletePayload struct {
	SegmentID          string             `json:"segmentId"`
	SegmentLeaderboard []LeaderboardEntry `json:"segmentLeaderboard"`
	EventLeaderboard   []LeaderboardEntry `json:"eventLeaderboard"`
	SegmentWinner      *LeaderboardEntry  `json:"segmentWinner,omitempty"`
	EventLeader        *LeaderboardEntry  `json:"eventLeader,omitempty"`
}

type EventCompletePayload struct {
	EventID          string                      `json:"eventId"`
	FinalLeaderboard []LeaderboardEntry          `json:"finalLeaderboard"`
	SegmentWinners   map[string]LeaderboardEntry `json:"segmentWinners"`
}

type GameEndedPayload struct {
	SegmentID string `json:"segmentId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type TranscriptUpdatePayload struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type QuestionGeneratedPayload struct {
	Question         string `json:"question"`
	CorrectAnswer    string `json:"correctAnswer"`
	SourceTranscript string `json:"sourceTranscript"`
}

type TranscriptionErrorPayload struct {
	Error string `json:"error"`
}

type ProcessingStatusPayload struct {
	Status string `json:"status"`
}

type CanvasSyncPayload struct {
	Strokes []Stroke `json:"strokes"`
}
