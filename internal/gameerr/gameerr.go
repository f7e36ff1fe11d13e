// Package gameerr holds the client-facing error taxonomy. Every error a
// client can receive carries a stable key; the message is for humans.
package gameerr

import (
	"errors"
)

type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindStateViolation Kind = "state_violation"
	KindUnauthorized   Kind = "unauthorized"
	KindInvalidMove    Kind = "invalid_move"
	KindAgentFailure   Kind = "agent_failure"
	KindBadRequest     Kind = "bad_request"
	KindInternal       Kind = "internal"
)

type Error struct {
	Kind    Kind
	Key     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Key + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Key + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by key, so a wrapped instance matches its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Key == t.Key
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

func newErr(kind Kind, key, message string) *Error {
	return &Error{Kind: kind, Key: key, Message: message}
}

var (
	ErrGameNotFound       = newErr(KindNotFound, "ERR_GAME_NOT_FOUND", "Game not found")
	ErrGameFull           = newErr(KindConflict, "ERR_GAME_FULL", "Game is full")
	ErrGameAlreadyStarted = newErr(KindConflict, "ERR_GAME_ALREADY_STARTED", "Game has already started")
	ErrInvalidState       = newErr(KindStateViolation, "ERR_INVALID_STATE", "Action not allowed in the current game state")
	ErrGameNotStarted     = newErr(KindStateViolation, "ERR_GAME_NOT_STARTED", "Game has not started")
	ErrNoOpponent         = newErr(KindStateViolation, "ERR_NO_OPPONENT", "Game has no opponent")
	ErrNotInGame          = newErr(KindUnauthorized, "ERR_NOT_IN_GAME", "You are not in this game")
	ErrNotYourTurn        = newErr(KindUnauthorized, "ERR_NOT_YOUR_TURN", "It's not your turn")
	ErrInvalidMove        = newErr(KindInvalidMove, "ERR_INVALID_MOVE", "Invalid move")
	ErrAgentNotConfigured = newErr(KindStateViolation, "ERR_AGENT_NOT_CONFIGURED", "Agent endpoint not configured")
	ErrAgentUnavailable   = newErr(KindAgentFailure, "ERR_AGENT_UNAVAILABLE", "Agent is unavailable")
	ErrBadRequest         = newErr(KindBadRequest, "ERR_BAD_REQUEST", "Malformed request")
	ErrInternal           = newErr(KindInternal, "ERR_INTERNAL", "Internal error")
)

// From extracts the client-facing error from err. Anything outside the
// taxonomy is reported as ErrInternal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}
