package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

var errDeclined = errors.New("cancelled")

// confirm asks before a vocabulary change unless yes is set. A declined or
// aborted prompt returns an ExitError with code 1.
func (a *app) confirm(title, description string, yes bool) error {
	if yes {
		return nil
	}
	ok := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithInput(a.in).WithOutput(a.errOut).Run()
	if errors.Is(err, huh.ErrUserAborted) || (err == nil && !ok) {
		return &ExitError{Code: exitGeneric, Err: errDeclined}
	}
	if err != nil {
		return fmt.Errorf("confirm: %w (use --yes to skip the prompt)", err)
	}
	return nil
}
