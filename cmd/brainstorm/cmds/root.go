// Package cmds holds the cobra commands of the brainstorm CLI.
package cmds

import (
	"github.com/T-X-R/BrainstormAI/pkg/config"
	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the command tree around a shared Env.
func NewRootCommand() (*cobra.Command, *Env) {
	env := &Env{}
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "brainstorm is a terminal client for multi-agent brainstorming sessions",
		Long: "brainstorm creates a session on a brainstorm server, streams the agents'\n" +
			"messages as they are written and lets you join in, pause or end the conversation.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// reinitialize the logger because we can now parse --log-level and co
			return env.Init()
		},
	}
	config.AddFlags(root.PersistentFlags())

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, root)

	cobra.CheckErr(clay.InitViper(config.AppName, root))
	cobra.CheckErr(config.BindViper(viper.GetViper(), root.PersistentFlags()))

	history, err := NewHistoryCommand(env)
	cobra.CheckErr(err)
	cobraHistory, err := cli.BuildCobraCommand(history, cli.WithCobraMiddlewaresFunc(glazedMiddlewares))
	cobra.CheckErr(err)
	cobraHistory.AddCommand(newHistoryShowCommand(env))

	stats, err := NewStatsCommand(env)
	cobra.CheckErr(err)
	cobraStats, err := cli.BuildCobraCommand(stats, cli.WithCobraMiddlewaresFunc(glazedMiddlewares))
	cobra.CheckErr(err)

	chat := NewChatCommand(env)
	root.AddCommand(
		chat,
		NewModelsCommand(env),
		NewExportCommand(env),
		NewEndCommand(env),
		cobraHistory,
		cobraStats,
	)
	// `brainstorm` alone starts a chat.
	root.RunE = chat.RunE
	return root, env
}

func glazedMiddlewares(
	_ *values.Values,
	cmd *cobra.Command,
	args []string,
) ([]sources.Middleware, error) {
	return []sources.Middleware{
		sources.FromCobra(cmd),
		sources.FromArgs(args),
		sources.FromEnv(config.EnvPrefix,
			fields.WithSource("env"),
		),
		sources.FromDefaults(),
	}, nil
}
