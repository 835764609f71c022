package domain

import "errors"

var (
	// ErrEventNotFound is returned when no event matches an id or session code.
	ErrEventNotFound = errors.New("event not found")
	// ErrSessionNotFound is returned when a live session has not been initialized.
	ErrSessionNotFound = errors.New("event session not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in event")
	// ErrSegmentNotFound indicates a segment id could not be resolved.
	ErrSegmentNotFound = errors.New("segment not found")
	// ErrQuestionNotFound indicates a question id is invalid for the segment.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoActiveQuestion is returned on answers submitted between questions.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrQuestionMismatch is returned when an answer references a question
	// other than the active one.
	ErrQuestionMismatch = errors.New("answer does not reference the active question")
	// ErrNotController is returned when a non-host, non-presenter user issues
	// a quiz control command.
	ErrNotController = errors.New("only the host or current presenter can do that")
	// ErrNoProvider indicates no usable AI or speech provider is configured.
	ErrNoProvider = errors.New("no provider configured")
)
