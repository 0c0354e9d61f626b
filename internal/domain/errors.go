package domain

import "errors"

var (
	// ErrRemoteUnavailable covers network, timeout, rate-limit and provider
	// errors; it is absorbed by the local fallback and only logged.
	ErrRemoteUnavailable = errors.New("remote question source unavailable")
	// ErrNoQuestionsAvailable means both the remote source and the local bank
	// yielded nothing usable. Terminal for the attempt.
	ErrNoQuestionsAvailable = errors.New("unable to load questions")
	// ErrStorageUnavailable indicates a ledger read/write failure; readers
	// degrade to an empty history instead of failing the session.
	ErrStorageUnavailable = errors.New("high score storage unavailable")
	// ErrInvalidSessionState is returned when an operation does not apply to
	// the session's current phase (e.g. answering before questions loaded).
	ErrInvalidSessionState = errors.New("invalid session state")
	// ErrSessionNotFound is returned when no session exists for a client.
	ErrSessionNotFound = errors.New("quiz session not found")
)
