package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewModelsCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the server can assign to agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := env.APIClient()
			if err != nil {
				return err
			}
			resp, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range resp.Models {
				marker := " "
				if m == resp.DefaultModel {
					marker = "*"
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", marker, m)
			}
			return nil
		},
	}
}
