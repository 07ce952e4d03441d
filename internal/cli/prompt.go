package cli

import (
	"context"
	"errors"

	"github.com/manifoldco/promptui"
)

// Prompter asks the user to pick from a list or type a value.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Input(label, initial string) (string, error)
}

type promptUI struct{}

func (promptUI) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  min(len(items), 15),
	}
	index, _, err := prompt.Run()
	return index, err
}

func (promptUI) Input(label, initial string) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   initial,
		AllowEdit: true,
	}
	return prompt.Run()
}

// isInterrupt reports whether err means the user or the OS asked the client to stop.
func isInterrupt(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrEOF) ||
		errors.Is(err, context.Canceled)
}
