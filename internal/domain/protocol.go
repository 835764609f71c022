package domain

// Message is the tagged envelope exchanged on every websocket channel and on
// the hub's broadcast bus. Payload is marshaled as-is at write time.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Server -> client message types (quiz channel).
const (
	MsgConnected         = "connected"
	MsgParticipantJoined = "participant_joined"
	MsgParticipantLeft   = "participant_left"
	MsgGameStarted       = "game_started"
	MsgQuestion          = "question"
	MsgAnswerReceived    = "answer_received"
	MsgAllAnswered       = "all_answered"
	MsgReveal            = "reveal"
	MsgLeaderboard       = "leaderboard"
	MsgPhaseChanged      = "phase_changed"
	MsgPresenterChanged  = "presenter_changed"
	MsgSegmentComplete   = "segment_complete"
	MsgEventComplete     = "event_complete"
	MsgGameEnded         = "game_ended"
	MsgError             = "error"
)

// Server -> client message types (audio channel).
const (
	MsgTranscriptUpdate   = "transcript_update"
	MsgQuestionGenerated  = "question_generated"
	MsgTranscriptionError = "transcription_error"
	MsgProcessingStatus   = "processing_status"
)

// Server -> client message types (canvas relay).
const (
	MsgStrokeAdded   = "stroke_added"
	MsgCanvasCleared = "canvas_cleared"
	MsgCanvasSync    = "canvas_sync"
)

// Client -> server message types.
const (
	CmdJoin            = "join"
	CmdAnswer          = "answer"
	CmdStartGame       = "start_game"
	CmdNextQuestion    = "next_question"
	CmdRevealAnswer    = "reveal_answer"
	CmdShowLeaderboard = "show_leaderboard"
	CmdEndGame         = "end_game"
	CmdPassPresenter   = "pass_presenter"
	CmdDrawStroke      = "draw_stroke"
	CmdClearCanvas     = "clear_canvas"
	CmdAudioStop       = "audio_stop"
)
