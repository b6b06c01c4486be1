package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnknownTag         = errors.New("unknown tag")
	ErrAliasConflict      = errors.New("alias conflict")
	ErrDuplicateTag       = errors.New("duplicate tag")
	ErrDuplicateGroup     = errors.New("duplicate group")
	ErrNotFound           = errors.New("not found")
	ErrMalformedSelection = errors.New("malformed selection")
	ErrEmptySelection     = errors.New("nothing selected")
	ErrConflict           = errors.New("concurrent modification")
)

// Error carries one of the sentinel kinds plus detail
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsTaxonomyError reports whether err is a tag or group integrity violation
func IsTaxonomyError(err error) bool {
	return errors.Is(err, ErrUnknownTag) ||
		errors.Is(err, ErrAliasConflict) ||
		errors.Is(err, ErrDuplicateTag) ||
		errors.Is(err, ErrDuplicateGroup)
}
