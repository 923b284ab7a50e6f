package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/relaybot/pkg/log"
)

type DeliveryConfig struct {
	BaseURL string `env:"DELIVERY_BASE_URL,required,notEmpty"`

	// Credentials maps a channel account (the "from" side of the
	// conversation key) to its provider token, e.g.
	// DELIVERY_CREDENTIALS="14155550100:tok1,14155550101:tok2".
	Credentials map[string]string `env:"DELIVERY_CREDENTIALS" envSeparator:"," envKeyValSeparator:":"`
}

func NewDeliveryConfig(ctx context.Context) *DeliveryConfig {
	c := &DeliveryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Delivery config")
	}
	return c
}
