package cmds

import (
	"context"
	"os"
	"path/filepath"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/eventbus"
	"github.com/T-X-R/BrainstormAI/pkg/persistence/transcriptstore"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/session"
	"github.com/T-X-R/BrainstormAI/pkg/transport"
	"github.com/T-X-R/BrainstormAI/pkg/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func NewChatCommand(env *Env) *cobra.Command {
	var exportDir string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a brainstorming session and join the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), env, exportDir)
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory for transcripts exported during the session")
	return cmd
}

// exportToDir writes downloaded transcripts under dir using the server's filename.
func exportToDir(dir string) session.ExportFunc {
	return func(_ context.Context, exp *api.Export) (string, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "create export directory")
		}
		path := filepath.Join(dir, filepath.Base(exp.Filename))
		if err := os.WriteFile(path, exp.Raw, 0o644); err != nil {
			return "", errors.Wrapf(err, "write %s", path)
		}
		return path, nil
	}
}

func runChat(ctx context.Context, env *Env, exportDir string) error {
	s := env.Settings
	plain := s.Plain || !Interactive()
	if !plain {
		if err := env.LogToFile(); err != nil {
			return err
		}
	}
	logger := log.With().Str("component", "chat").Logger()

	client, err := env.APIClient()
	if err != nil {
		return err
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not list models, using server defaults")
		models = nil
	}

	store, err := env.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close transcript store")
		}
	}()
	recorder := transcriptstore.NewRecorder(store, 256, log.Logger)

	bus, err := eventbus.New(s.Bus, log.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	newManager := func(sink render.Sink) (*session.Manager, error) {
		return session.NewManager(session.Config{
			API:       client,
			Dialer:    &transport.WebsocketDialer{Logger: log.Logger},
			StreamURL: s.StreamURL,
			Bus:       bus,
			Sink:      render.MultiSink{sink, recorder},
			Export:    exportToDir(exportDir),
			Logger:    log.Logger,
		})
	}

	eg, gctx := errgroup.WithContext(ctx)
	loopCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if plain {
		width := 0
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
		var opts []termenv.OutputOption
		if s.NoColor {
			opts = append(opts, termenv.WithProfile(termenv.Ascii))
		}
		presenter := ui.NewPlain(os.Stdout, width, opts...)
		mgr, err := newManager(presenter)
		if err != nil {
			return err
		}
		eg.Go(func() error { return mgr.Run(loopCtx) })
		eg.Go(func() error { return recorder.Run(loopCtx) })
		eg.Go(func() error {
			defer cancel()
			return presenter.Run(loopCtx, mgr, os.Stdin, models)
		})
		return eg.Wait()
	}

	mdStyle := "dark"
	if s.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		mdStyle = "notty"
	} else if !lipgloss.HasDarkBackground() {
		mdStyle = "light"
	}
	model := ui.NewChatModel(loopCtx, nil, ui.WithModels(models), ui.WithMarkdownStyle(mdStyle))
	program, sink := ui.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(loopCtx))
	mgr, err := newManager(sink)
	if err != nil {
		return err
	}
	model.Bind(mgr)

	eg.Go(func() error { return mgr.Run(loopCtx) })
	eg.Go(func() error { return recorder.Run(loopCtx) })
	eg.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	if n := recorder.Dropped(); n > 0 {
		logger.Warn().Int64("dropped", n).Msg("some transcript writes were dropped")
	}
	return nil
}
