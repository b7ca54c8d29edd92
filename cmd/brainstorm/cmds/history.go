package cmds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/persistence/transcriptstore"
	"github.com/T-X-R/BrainstormAI/pkg/transcript"
	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type HistoryCommand struct {
	*cmds.CommandDescription
	env *Env
}

type HistorySettings struct {
	Limit int    `glazed:"limit"`
	Since string `glazed:"since"`
}

func NewHistoryCommand(env *Env) (*HistoryCommand, error) {
	glazedLayer, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"history",
		cmds.WithShort("List sessions recorded locally"),
		cmds.WithLong("List the sessions of the local transcript store, most recent first."),
		cmds.WithFlags(
			fields.New(
				"limit",
				fields.TypeInteger,
				fields.WithDefault(20),
				fields.WithHelp("Maximum number of sessions (0 = no limit)"),
			),
			fields.New(
				"since",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only sessions active within this duration, e.g. 24h"),
			),
		),
		cmds.WithSections(glazedLayer),
	)

	return &HistoryCommand{CommandDescription: desc, env: env}, nil
}

func (c *HistoryCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &HistorySettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	sinceMs, err := sinceMillis(s.Since, time.Now())
	if err != nil {
		return err
	}

	store, err := c.env.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessions, err := store.ListSessions(ctx, s.Limit, sinceMs)
	if err != nil {
		return err
	}
	for _, rec := range sessions {
		if err := gp.AddRow(ctx, sessionRow(rec)); err != nil {
			return err
		}
	}
	return nil
}

// sinceMillis turns a duration flag into a lower bound on last activity.
func sinceMillis(since string, now time.Time) (int64, error) {
	since = strings.TrimSpace(since)
	if since == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(since)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --since %q", since)
	}
	if d <= 0 {
		return 0, nil
	}
	return now.Add(-d).UnixMilli(), nil
}

func sessionRow(s transcriptstore.SessionRecord) types.Row {
	return types.NewRow(
		types.MRP("session_id", s.SessionID),
		types.MRP("topic", s.Topic),
		types.MRP("status", s.Status),
		types.MRP("agents", len(s.Agents)),
		types.MRP("messages", s.MessageCount),
		types.MRP("last_activity", time.UnixMilli(s.LastActivityMs).Format("2006-01-02 15:04")),
	)
}

var _ cmds.GlazeCommand = &HistoryCommand{}

func newHistoryShowCommand(env *Env) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Render a locally recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			t, err := transcript.FromStore(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			md := transcript.Markdown(t)
			if raw || env.Settings.NoColor || !Interactive() {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			styled, err := glamour.Render(md, "dark")
			if err != nil {
				return errors.Wrap(err, "render transcript")
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), styled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without styling")
	return cmd
}
