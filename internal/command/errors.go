package command

import (
	"errors"
	"fmt"

	"taskdag/internal/store"
)

// Stable machine-readable error kinds. Consumers branch on these; the
// message is for humans.
const (
	KindNotInitialized     = "not_initialized"
	KindAlreadyInitialized = "already_initialized"
	KindNotFound           = "not_found"
	KindNoChanges          = "no_changes"
	KindGitError           = "git_error"
	KindGitNotFound        = "git_not_found"
	KindInternal           = "internal"
)

// Error is the structured error document every failed command emits.
type Error struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func errNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AsError normalizes any failure into a structured error document, mapping
// the store sentinels onto their taxonomy kinds.
func AsError(err error) *Error {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	switch {
	case errors.Is(err, store.ErrNotInitialized):
		return &Error{Kind: KindNotInitialized, Message: err.Error()}
	case errors.Is(err, store.ErrAlreadyInitialized):
		return &Error{Kind: KindAlreadyInitialized, Message: err.Error()}
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}
