package cmds

import (
	"context"

	"github.com/T-X-R/BrainstormAI/pkg/transcript"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
)

type StatsCommand struct {
	*cmds.CommandDescription
	env *Env
}

type StatsSettings struct {
	SessionID string `glazed:"session-id"`
	Local     bool   `glazed:"local"`
	Encoding  string `glazed:"encoding"`
}

func NewStatsCommand(env *Env) (*StatsCommand, error) {
	glazedLayer, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"stats",
		cmds.WithShort("Message and token counts per speaker"),
		cmds.WithLong("Count messages, tokens and characters per speaker of a session transcript."),
		cmds.WithFlags(
			fields.New(
				"local",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Use the local history instead of the server"),
			),
			fields.New(
				"encoding",
				fields.TypeString,
				fields.WithDefault("cl100k_base"),
				fields.WithHelp("tiktoken encoding used to count tokens"),
			),
		),
		cmds.WithArguments(
			fields.New(
				"session-id",
				fields.TypeString,
				fields.WithRequired(true),
				fields.WithHelp("Session to summarize"),
			),
		),
		cmds.WithSections(glazedLayer),
	)

	return &StatsCommand{CommandDescription: desc, env: env}, nil
}

func (c *StatsCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &StatsSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	t, _, _, err := loadTranscript(ctx, c.env, s.SessionID, s.Local)
	if err != nil {
		return err
	}
	counter, err := transcript.NewTiktokenCounter(s.Encoding)
	if err != nil {
		return err
	}
	for _, row := range speakerRows(t.SessionID, transcript.ComputeStats(t, counter)) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// speakerRows yields one row per speaker, busiest first, with each speaker's
// share of the session's tokens.
func speakerRows(sessionID string, st transcript.Stats) []types.Row {
	rows := make([]types.Row, 0, len(st.Speakers))
	for _, sp := range st.Speakers {
		share := 0.0
		if st.Tokens > 0 {
			share = float64(sp.Tokens) / float64(st.Tokens)
		}
		rows = append(rows, types.NewRow(
			types.MRP("session_id", sessionID),
			types.MRP("speaker", sp.Name),
			types.MRP("author_type", sp.AuthorType),
			types.MRP("messages", sp.Messages),
			types.MRP("tokens", sp.Tokens),
			types.MRP("characters", sp.Characters),
			types.MRP("token_share", share),
		))
	}
	return rows
}

var _ cmds.GlazeCommand = &StatsCommand{}
