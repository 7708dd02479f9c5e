/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import "errors"

// Kind groups errors into the categories surfaced to clients.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a flat, user-facing error. The message is shown to players as-is.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

// NewError defines a sentinel for a game's own failure cases.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	ErrRoomNotFound   = &Error{KindNotFound, "room not found"}
	ErrPlayerNotFound = &Error{KindNotFound, "player not found"}
	ErrUnknownGame    = &Error{KindNotFound, "unknown game"}

	ErrInvalidName   = &Error{KindValidation, "invalid name"}
	ErrInvalidAction = &Error{KindValidation, "invalid action"}

	ErrNotHost     = &Error{KindForbidden, "only the host can do that"}
	ErrNotYourTurn = &Error{KindForbidden, "it is not your turn"}
	ErrNotAllowed  = &Error{KindForbidden, "you cannot do that"}
	ErrLobbyLocked = &Error{KindForbidden, "the lobby is locked"}

	ErrGameAlreadyStarted = &Error{KindConflict, "game already started"}
	ErrNotEnoughPlayers   = &Error{KindConflict, "not enough players"}
	ErrRoomFull           = &Error{KindConflict, "room is full"}
	ErrNameTaken          = &Error{KindConflict, "name already taken"}
	ErrWrongPhase         = &Error{KindConflict, "not allowed in this phase"}
	ErrAlreadyActed       = &Error{KindConflict, "already done this round"}
	ErrInvalidTransition  = &Error{KindConflict, "invalid phase transition"}
)

// KindOf reports the category of err, or KindInternal for errors not
// raised by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
