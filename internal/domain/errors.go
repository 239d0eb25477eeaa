package domain

import "errors"

var (
	// ErrInvalidName is returned when a registration name is empty after trimming.
	ErrInvalidName = errors.New("display name must not be empty")
	// ErrNoSuchChallenge indicates an accept/reject for a challenge that is not pending.
	ErrNoSuchChallenge = errors.New("no such pending challenge")
	// ErrNoQuestions indicates the question pool is empty.
	ErrNoQuestions = errors.New("question pool is empty")
)
