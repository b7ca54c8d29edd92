// Package config decodes brainstorm settings. The root command initialises
// viper through clay, so flags, BRAINSTORM_* env vars and
// ~/.brainstorm/config.yaml apply in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/eventbus"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName   = "brainstorm"
	EnvPrefix = "BRAINSTORM"

	DefaultServerURL = "http://localhost:8000"
	DefaultAPIPrefix = "/api"
	DefaultWSPath    = "/ws/sessions/{id}"
	DefaultStateDir  = "~/.brainstorm"
)

type Settings struct {
	ServerURL string `mapstructure:"server-url"`
	APIPrefix string `mapstructure:"api-prefix"`
	WSPath    string `mapstructure:"ws-path"`
	// Store is a sqlite file path or "memory".
	Store   string `mapstructure:"store"`
	Plain   bool   `mapstructure:"plain"`
	NoColor bool   `mapstructure:"no-color"`
	// LogFile mirrors the logging flag registered by clay.
	LogFile string `mapstructure:"log-file"`

	Bus eventbus.Settings `mapstructure:",squash"`
}

// AddFlags registers the persistent flags every command shares. Logging and
// config file flags come from clay.
func AddFlags(fs *pflag.FlagSet) {
	bus := eventbus.DefaultSettings()
	fs.String("server-url", DefaultServerURL, "brainstorm server base URL")
	fs.String("api-prefix", DefaultAPIPrefix, "path prefix of the HTTP API")
	fs.String("ws-path", DefaultWSPath, "session stream path template, {id} is replaced by the session id")
	fs.String("store", filepath.Join(DefaultStateDir, "history.db"), "local transcript store: sqlite file or \"memory\"")
	fs.Bool("redis-enabled", false, "route stream frames through Redis Streams")
	fs.String("redis-addr", bus.Redis.Addr, "Redis address")
	fs.String("redis-group", bus.Redis.Group, "Redis consumer group")
	fs.String("redis-consumer", bus.Redis.Consumer, "Redis consumer name")
	fs.Int64("bus-buffer", bus.Buffer, "in-memory bus output buffer")
	fs.Bool("plain", false, "use the line-mode interface instead of the TUI")
	fs.Bool("no-color", false, "disable colours")
}

// BindViper maps BRAINSTORM_* env vars onto dashed keys and binds fs.
func BindViper(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return errors.Wrap(v.BindPFlags(fs), "bind flags")
}

// Load decodes v into Settings and expands home-relative paths.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		ServerURL: DefaultServerURL,
		APIPrefix: DefaultAPIPrefix,
		WSPath:    DefaultWSPath,
		Bus:       eventbus.DefaultSettings(),
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, errors.Wrap(err, "decode settings")
	}
	s.ServerURL = strings.TrimRight(strings.TrimSpace(s.ServerURL), "/")
	if s.ServerURL == "" {
		return s, errors.New("server-url is empty")
	}
	var err error
	if s.Store != "" && s.Store != "memory" {
		if s.Store, err = homedir.Expand(s.Store); err != nil {
			return s, errors.Wrap(err, "expand store path")
		}
	}
	if s.LogFile != "" {
		if s.LogFile, err = homedir.Expand(s.LogFile); err != nil {
			return s, errors.Wrap(err, "expand log file path")
		}
	}
	if os.Getenv("NO_COLOR") != "" {
		s.NoColor = true
	}
	return s, nil
}

// APIBaseURL joins the server URL and the API prefix.
func (s Settings) APIBaseURL() string {
	prefix := strings.Trim(s.APIPrefix, "/")
	if prefix == "" {
		return s.ServerURL
	}
	return s.ServerURL + "/" + prefix
}

// StreamURL is the websocket URL of a session's stream.
func (s Settings) StreamURL(sessionID string) (string, error) {
	return api.StreamURL(s.ServerURL, s.WSPath, sessionID)
}

// StateFile returns a path inside the state directory.
func StateFile(name string) (string, error) {
	dir, err := homedir.Expand(DefaultStateDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
