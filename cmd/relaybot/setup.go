package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/delivery"
	"github.com/sandevgo/relaybot/internal/providers/llm"
	"github.com/sandevgo/relaybot/internal/providers/rag"
	"github.com/sandevgo/relaybot/internal/providers/stt"
	"github.com/sandevgo/relaybot/internal/service/dispatch"
	"github.com/sandevgo/relaybot/internal/service/flow"
	"github.com/sandevgo/relaybot/internal/service/orchestrator"
	"github.com/sandevgo/relaybot/internal/service/retrieval"
	"github.com/sandevgo/relaybot/internal/storage/sqlite"
	"github.com/sandevgo/relaybot/internal/transport/telegram"
	"github.com/sandevgo/relaybot/internal/transport/webhook"
	"github.com/sandevgo/relaybot/pkg/log"
	"github.com/sandevgo/relaybot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	genCfg := config.NewGenerationConfig(ctx)
	embCfg := config.NewEmbeddingConfig(ctx)
	sttCfg := config.NewTranscriptionConfig(ctx)

	// 2. Storage
	db, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	eventsRepo := sqlite.NewEventsRepo(db)
	sessionsRepo := sqlite.NewSessionsRepo(db)
	knowledgeRepo := sqlite.NewKnowledgeRepo(db)

	// 3. Providers
	generator := llm.NewClient(genCfg)
	embedder := rag.NewEmbedder(embCfg)
	transcriber := stt.NewTranscriber(sttCfg)

	// 4. Pipeline
	machine := flow.NewMachine(flow.DefaultConfig())
	assembler := retrieval.NewAssembler(appCfg, embedder, knowledgeRepo, eventsRepo)
	policy := dispatch.NewPolicy(appCfg, genCfg, generator, eventsRepo)

	// Transports register their outbound channels on the router while
	// the pipeline is already holding it.
	router := delivery.NewRouter()

	orch := orchestrator.New(
		appCfg,
		eventsRepo,
		sessionsRepo,
		machine,
		assembler,
		policy,
		transcriber,
		router,
	)

	// 5. Transports
	transports, err := initTransports(ctx, appCfg, orch, router, embedder, knowledgeRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0o755); err != nil {
		return nil, err
	}
	return sqlite.NewDB(ctx, cfg.GetDatabasePath())
}

func initTransports(
	ctx context.Context,
	cfg *config.AppConfig,
	orch *orchestrator.Orchestrator,
	router *delivery.Router,
	embedder *rag.Embedder,
	knowledge *sqlite.KnowledgeRepo,
) ([]srv.Service, error) {
	var services []srv.Service

	// Webhook ingestion + HTTP gateway delivery
	if cfg.EnableWebhook {
		deliveryCfg := config.NewDeliveryConfig(ctx)
		router.SetFallback(delivery.NewHTTPDeliverer(deliveryCfg))

		webhookCfg := config.NewWebhookConfig(ctx)
		handler := webhook.NewHandler(orch, embedder, knowledge)
		services = append(services, webhook.NewServer(ctx, webhookCfg, handler))
	}

	// Telegram Bot
	if cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, orch)
		if err != nil {
			return nil, err
		}
		router.Register("telegram-", bot.Sender())
		services = append(services, bot)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
