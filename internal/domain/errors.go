package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so boundary layers can map it without string matching.
type Kind string

const (
	KindBoardNotFound     Kind = "BOARD_NOT_FOUND"
	KindMenuNotFound      Kind = "MENU_NOT_FOUND"
	KindVoteNotFound      Kind = "VOTE_NOT_FOUND"
	KindSlotNotFound      Kind = "SLOT_NOT_FOUND"
	KindUserNotFound      Kind = "USER_NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindVoteLimitExceeded Kind = "VOTE_LIMIT_EXCEEDED"
	KindDuplicateVote     Kind = "DUPLICATE_VOTE"
	KindNoVotesYet        Kind = "NO_VOTES_YET"
	KindValidation        Kind = "VALIDATION"
)

// HTTPStatus returns the status code a boundary layer should answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBoardNotFound, KindMenuNotFound, KindVoteNotFound, KindSlotNotFound,
		KindUserNotFound, KindNoVotesYet:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindVoteLimitExceeded, KindDuplicateVote:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: e.Details, cause: err}
}

func (e *Error) WithDetails(details any) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, cause: e.cause}
}

var (
	ErrBoardNotFound     = &Error{Kind: KindBoardNotFound, Message: "board not found"}
	ErrMenuNotFound      = &Error{Kind: KindMenuNotFound, Message: "menu not found"}
	ErrVoteNotFound      = &Error{Kind: KindVoteNotFound, Message: "vote not found"}
	ErrSlotNotFound      = &Error{Kind: KindSlotNotFound, Message: "menu is not on this board"}
	ErrUserNotFound      = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "only board members can do this"}
	ErrVoteLimitExceeded = &Error{Kind: KindVoteLimitExceeded, Message: "vote limit per board reached"}
	ErrDuplicateVote     = &Error{Kind: KindDuplicateVote, Message: "already voted for this menu"}
	ErrNoVotesYet        = &Error{Kind: KindNoVotesYet, Message: "no votes on this board yet"}
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
)

// KindOf returns the Kind carried by err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
