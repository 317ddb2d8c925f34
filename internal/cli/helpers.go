package cli

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/lago-morph/mk8/internal/errdef"
)

// confirmDestructive asks the user to confirm a destructive operation unless
// it was pre-approved with --yes.
func confirmDestructive(yes bool, message string) (bool, error) {
	if yes {
		return true, nil
	}
	confirmed := false
	prompt := &survey.Confirm{Message: message}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, errdef.New("interrupted").WithCode(errdef.ExitInterrupt)
		}
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return confirmed, nil
}
