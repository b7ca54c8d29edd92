package eventbus

// RedisSettings configures the optional Redis Streams transport.
type RedisSettings struct {
	Enabled  bool   `mapstructure:"redis-enabled"`
	Addr     string `mapstructure:"redis-addr"`
	Group    string `mapstructure:"redis-group"`
	Consumer string `mapstructure:"redis-consumer"`
}

type Settings struct {
	Redis RedisSettings `mapstructure:",squash"`
	// Buffer is the per-subscriber output buffer of the in-memory bus.
	Buffer int64 `mapstructure:"bus-buffer"`
}

func DefaultSettings() Settings {
	return Settings{
		Redis: RedisSettings{
			Addr:     "localhost:6379",
			Group:    "brainstorm-ui",
			Consumer: "ui-1",
		},
		Buffer: 256,
	}
}
