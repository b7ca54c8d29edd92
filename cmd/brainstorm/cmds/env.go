package cmds

import (
	"os"
	"path/filepath"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/config"
	"github.com/T-X-R/BrainstormAI/pkg/persistence/transcriptstore"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Env is the state shared by all subcommands. The root command fills it in
// PersistentPreRunE once flags are parsed.
type Env struct {
	Settings config.Settings
}

// Init reinitializes the logger from the parsed flags and decodes settings.
func (e *Env) Init() error {
	if err := logging.InitLoggerFromViper(); err != nil {
		return err
	}
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	e.Settings = s
	log.Debug().Str("server_url", s.ServerURL).Str("store", s.Store).Msg("settings loaded")
	return nil
}

// LogToFile moves logging to the state directory unless a file was
// configured. The TUI owns the terminal, so stderr output would garble it.
func (e *Env) LogToFile() error {
	if e.Settings.LogFile != "" {
		return nil
	}
	path, err := config.StateFile("brainstorm.log")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create state dir")
	}
	viper.Set("log-file", path)
	e.Settings.LogFile = path
	return logging.InitLoggerFromViper()
}

func (e *Env) APIClient() (*api.Client, error) {
	return api.NewClient(e.Settings.APIBaseURL(), api.WithLogger(log.Logger))
}

func (e *Env) OpenStore() (transcriptstore.Store, error) {
	st, err := transcriptstore.Open(e.Settings.Store)
	if err != nil {
		return nil, errors.Wrapf(err, "open transcript store %s", e.Settings.Store)
	}
	return st, nil
}

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
