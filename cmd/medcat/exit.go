package main

import (
	"errors"
	"fmt"

	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/export"
)

// Exit codes
const (
	exitOK         = 0
	exitGeneric    = 1
	exitValidation = 2
	exitTaxonomy   = 3
	exitNotFound   = 4
	exitSelection  = 5
	exitConflict   = 6
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, domain.ErrConflict):
		return exitConflict
	case errors.Is(err, domain.ErrValidation):
		return exitValidation
	case domain.IsTaxonomyError(err):
		return exitTaxonomy
	case errors.Is(err, domain.ErrNotFound):
		return exitNotFound
	case errors.Is(err, domain.ErrMalformedSelection),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, export.ErrBundleExists):
		return exitSelection
	default:
		return exitGeneric
	}
}
