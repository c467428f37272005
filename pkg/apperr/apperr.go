// Package apperr defines the error kinds surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindNotFound
	KindUpstream
	KindExtraction
	KindBotBlocked
	KindManifest
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindExtraction:
		return "extraction"
	case KindBotBlocked:
		return "bot_blocked"
	case KindManifest:
		return "manifest"
	default:
		return "internal"
	}
}

// Error is a classified error carrying the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so sentinels like ErrBotBlocked work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInput      = &Error{Kind: KindInput}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrUpstream   = &Error{Kind: KindUpstream}
	ErrExtraction = &Error{Kind: KindExtraction}
	ErrBotBlocked = &Error{Kind: KindBotBlocked}
	ErrManifest   = &Error{Kind: KindManifest}
)

// New creates a classified error.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// Status maps an error to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream, KindExtraction, KindBotBlocked:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
