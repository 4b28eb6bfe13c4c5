package loom

import (
	"strings"

	"github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// AppConfig is loaded from the environment. Every field has a usable
// default; an app with no configuration at all gets logging at info
// level and no inspector or metrics.
type AppConfig struct {
	// LogLevel is any level zerolog understands: trace, debug, info,
	// warn, error.
	LogLevel string `config:"LOOM_LOG_LEVEL"`
	// LogPretty switches to the human-readable console writer.
	LogPretty bool `config:"LOOM_LOG_PRETTY"`
	// InspectorEnabled starts the debug HTTP server.
	InspectorEnabled bool `config:"LOOM_INSPECTOR_ENABLED"`
	// InspectorPort is the port the inspector listens on.
	InspectorPort string `config:"LOOM_INSPECTOR_PORT"`
	// StatsdAddress enables frame metrics when non-empty, e.g.
	// "localhost:8125".
	StatsdAddress string `config:"LOOM_STATSD_ADDRESS"`
	// StatsdTags are extra constant tags, comma-separated "key:value"
	// pairs.
	StatsdTags string `config:"LOOM_STATSD_TAGS"`
}

// statsdTagList splits StatsdTags into the tag slice the client wants.
func (c AppConfig) statsdTagList() []string {
	if c.StatsdTags == "" {
		return nil
	}
	parts := strings.Split(c.StatsdTags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() AppConfig {
	return AppConfig{
		LogLevel:      "info",
		InspectorPort: "7171",
	}
}

// LoadConfig reads the environment on top of the defaults.
func LoadConfig() (AppConfig, error) {
	cfg := defaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load config from env")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return eris.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	if c.InspectorEnabled && c.InspectorPort == "" {
		return eris.New("inspector enabled but no port configured")
	}
	return nil
}
