package coordinator

import (
	"errors"

	"github.com/mcdev12/trivia/go/internal/quiz/registry"
)

var (
	ErrInsufficientPlayers = errors.New("not enough players connected")
	ErrAlreadyActive       = errors.New("a game is already active")
	ErrNoActiveRound       = errors.New("no round is accepting answers")
	ErrDuplicateAnswer     = errors.New("answer already recorded for this round")
	ErrStaleAnswer         = errors.New("answer is for a round that has already closed")
	ErrQuestionSource      = errors.New("question source failed")

	ErrDuplicatePlayer = registry.ErrDuplicatePlayer
	ErrUnknownPlayer   = registry.ErrUnknownPlayer
	ErrInvalidName     = registry.ErrInvalidName
)

// Kind maps an error to the stable name reported to players and admin callers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientPlayers):
		return "InsufficientPlayers"
	case errors.Is(err, ErrAlreadyActive):
		return "AlreadyActive"
	case errors.Is(err, ErrNoActiveRound):
		return "NoActiveRound"
	case errors.Is(err, ErrDuplicateAnswer):
		return "DuplicateAnswer"
	case errors.Is(err, ErrStaleAnswer):
		return "StaleAnswer"
	case errors.Is(err, ErrDuplicatePlayer):
		return "DuplicatePlayer"
	case errors.Is(err, ErrUnknownPlayer):
		return "UnknownPlayer"
	case errors.Is(err, ErrInvalidName):
		return "InvalidName"
	case errors.Is(err, ErrQuestionSource):
		return "QuestionSourceUnavailable"
	default:
		return "Internal"
	}
}

// IsCallerError reports whether err was caused by the request itself rather
// than by the session or its collaborators.
func IsCallerError(err error) bool {
	switch Kind(err) {
	case "", "Internal", "QuestionSourceUnavailable":
		return false
	}
	return true
}
