package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/relaybot/pkg/log"
)

type WebhookConfig struct {
	ListenAddr string `env:"WEBHOOK_LISTEN_ADDR" envDefault:":8080"`
}

func NewWebhookConfig(ctx context.Context) *WebhookConfig {
	c := &WebhookConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Webhook config")
	}
	return c
}
