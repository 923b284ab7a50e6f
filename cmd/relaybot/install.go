package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/pkg/log"
	"github.com/spf13/cobra"
)

const envTemplate = `# RelayBot configuration
RELAYBOT_DEBUG=0

# Transports
ENABLE_WEBHOOK=true
ENABLE_TELEGRAM=false
WEBHOOK_LISTEN_ADDR=:8080
#TELEGRAM_TOKEN=

# Outbound gateway (account:token pairs, comma separated)
DELIVERY_BASE_URL=http://localhost:9000
DELIVERY_CREDENTIALS=

# Reply generation (OpenAI-compatible endpoint)
GENERATION_BASE_URL=http://localhost:11434
GENERATION_MODEL=qwen2.5:14b
#GENERATION_API_KEY=

# Embeddings
EMBEDDING_BASE_URL=http://localhost:11434
EMBEDDING_MODEL=nomic-embed-text

# Voice transcription
TRANSCRIPTION_BASE_URL=http://localhost:9090
TRANSCRIPTION_MODEL=whisper-1
`

var setupCmd = &cobra.Command{
	Use:           "setup",
	Short:         "Create the runtime directory and a starter .env",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Setup logger
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return err
		}

		envPath := filepath.Join(runtimePath, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return fmt.Errorf("%s already exists, not overwriting", envPath)
		}

		if err := os.WriteFile(envPath, []byte(envTemplate), 0o600); err != nil {
			return err
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Edit the .env file, then run 'relaybot start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
