package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/relaybot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"RELAYBOT_RUNTIME_PATH" envDefault:".relaybot"`

	// Transport flags
	EnableWebhook  bool `env:"ENABLE_WEBHOOK" envDefault:"true"`
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`

	// Retrieval tuning
	RetrievalTopK int `env:"RETRIEVAL_TOP_K" envDefault:"6"`
	HistoryWindow int `env:"HISTORY_WINDOW" envDefault:"12"`

	// What to do when a conversation has no knowledge scope: "canned"
	// sends a fixed no-information reply, "generate" still calls the
	// generator with an explicit empty-context instruction.
	NoContextMode string `env:"NO_CONTEXT_MODE" envDefault:"canned"`

	// StreamReplies drains the generator's streaming mode instead of
	// the single-shot call.
	StreamReplies bool `env:"STREAM_REPLIES" envDefault:"false"`

	// Per-collaborator call timeouts.
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	EmbedTimeout      time.Duration `env:"EMBED_TIMEOUT" envDefault:"15s"`
	GenerateTimeout   time.Duration `env:"GENERATE_TIMEOUT" envDefault:"60s"`
	DeliverTimeout    time.Duration `env:"DELIVER_TIMEOUT" envDefault:"20s"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

// GetRuntimePath resolves relative paths under the home directory, the
// same way the package-level GetRuntimePath does before config is
// parsed.
func (c AppConfig) GetRuntimePath() string {
	path := c.RuntimePath
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.GetRuntimePath(), "relaybot.db")
}
