package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/relaybot/pkg/log"
)

type GenerationConfig struct {
	BaseURL string `env:"GENERATION_BASE_URL,required,notEmpty"`
	APIKey  string `env:"GENERATION_API_KEY"`
	Model   string `env:"GENERATION_MODEL,required,notEmpty"`

	// MaxHistoryTokens bounds how much conversation history goes into
	// one generation request.
	MaxHistoryTokens int `env:"GENERATION_MAX_HISTORY_TOKENS" envDefault:"2000"`
}

func NewGenerationConfig(ctx context.Context) *GenerationConfig {
	c := &GenerationConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Generation config")
	}
	return c
}
