package cmds

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/transcript"
	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	format string
	out    string
	copy   bool
	local  bool
}

func NewExportCommand(env *Env) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Download a session transcript",
		Long: "Download a session transcript from the server, or from the local history with --local.\n" +
			"Formats: json (as served), yaml, markdown, html. Use --out - for stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, env, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format (json, yaml, markdown, html)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: server filename or brainstorm_<id>.<ext>)")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "also copy the transcript to the clipboard")
	cmd.Flags().BoolVar(&opts.local, "local", false, "read the transcript from the local history")
	return cmd
}

// loadTranscript fetches a session from the server, or from the local store.
// The raw server body is returned too so json exports keep it verbatim.
func loadTranscript(ctx context.Context, env *Env, sessionID string, local bool) (transcript.Transcript, []byte, string, error) {
	if local {
		store, err := env.OpenStore()
		if err != nil {
			return transcript.Transcript{}, nil, "", err
		}
		defer func() { _ = store.Close() }()
		t, err := transcript.FromStore(ctx, store, sessionID)
		return t, nil, "", err
	}
	client, err := env.APIClient()
	if err != nil {
		return transcript.Transcript{}, nil, "", err
	}
	exp, err := client.ExportSession(ctx, sessionID)
	if err != nil {
		return transcript.Transcript{}, nil, "", err
	}
	return transcript.FromExport(exp.Session), exp.Raw, exp.Filename, nil
}

func runExport(cmd *cobra.Command, env *Env, sessionID string, opts *exportOptions) error {
	format, err := transcript.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	t, raw, filename, err := loadTranscript(cmd.Context(), env, sessionID, opts.local)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if format == transcript.FormatJSON && len(raw) > 0 {
		buf.Write(raw)
	} else if err := transcript.Write(&buf, t, format); err != nil {
		return err
	}

	target := opts.out
	if target == "" {
		target = defaultExportName(sessionID, filename, format)
	}
	if target == "-" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
	} else {
		if dir := filepath.Dir(target); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "create output directory")
			}
		}
		err = os.WriteFile(target, buf.Bytes(), 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Transcript exported to %s\n", target)
		}
	}
	if err != nil {
		return errors.Wrap(err, "write transcript")
	}

	if opts.copy {
		if err := clipboard.WriteAll(buf.String()); err != nil {
			log.Warn().Err(err).Msg("clipboard unavailable")
			return errors.Wrap(err, "copy transcript to clipboard")
		}
	}
	return nil
}

func defaultExportName(sessionID, serverName string, format transcript.Format) string {
	base := strings.TrimSuffix(filepath.Base(serverName), filepath.Ext(serverName))
	if serverName == "" || base == "" || base == "." {
		base = "brainstorm_" + sessionID
	}
	return base + format.Extension()
}
