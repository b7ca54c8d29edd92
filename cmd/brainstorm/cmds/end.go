package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func NewEndCommand(env *Env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a running session on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !yes && isatty.IsTerminal(os.Stdin.Fd()) {
				ok, err := askConfirm(os.Stdin, cmd.ErrOrStderr(), fmt.Sprintf("End session %s? [y/N]", id))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			client, err := env.APIClient()
			if err != nil {
				return err
			}
			if err := client.EndSession(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Session %s ended\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// askConfirm asks a yes/no question, defaulting to no.
func askConfirm(r io.Reader, w io.Writer, query string) (bool, error) {
	ui := &input.UI{Writer: w, Reader: r}
	answer, err := ui.Ask(query, &input.Options{
		Default:     "n",
		HideDefault: true,
		HideOrder:   true,
		Loop:        true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "yes", "n", "N", "no", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "read confirmation")
	}
	switch answer {
	case "y", "Y", "yes":
		return true, nil
	}
	return false, nil
}
