package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/relaybot/pkg/log"
)

type TranscriptionConfig struct {
	BaseURL string `env:"TRANSCRIPTION_BASE_URL,required,notEmpty"`
	APIKey  string `env:"TRANSCRIPTION_API_KEY"`
	Model   string `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
}

func NewTranscriptionConfig(ctx context.Context) *TranscriptionConfig {
	c := &TranscriptionConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Transcription config")
	}
	return c
}
