// Package httpapi wires the broker's HTTP surface: the bot-facing user
// endpoints, the request submission endpoint, the admin management
// endpoints, and static image serving.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"modelbroker/internal/billing"
	"modelbroker/internal/broker"
	"modelbroker/internal/config"
	"modelbroker/internal/dispatch"
	"modelbroker/internal/extract"
	"modelbroker/internal/images"
	"modelbroker/internal/logging"
	"modelbroker/internal/middleware"
	"modelbroker/internal/notify"
	"modelbroker/internal/providers"
	"modelbroker/internal/queue"
	"modelbroker/internal/rates"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

// Dependencies aggregates the services the HTTP layer needs. Close order
// matters: workers drain before their queues close.
type Dependencies struct {
	DB           *storage.DB
	Users        *storage.UserRepository
	Models       *storage.ModelRepository
	Grants       *storage.GrantRepository
	Requests     *storage.RequestRepository
	Promos       *storage.PromoRepository
	Encryption   *storage.Encryption
	Orchestrator *broker.Orchestrator
	ImageStore   *images.Store
	AuditSink    logging.Sink
	NotifyWorker *notify.Worker
	Config       *config.Config
	Logger       *utils.Logger
}

// NewRouter builds the HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	logger := utils.NewLogger("httpapi")

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ModelCacheSize:  cfg.Cache.ModelCacheSize,
		ModelCacheTTL:   cfg.Cache.ModelCacheTTL,
		GrantCacheSize:  cfg.Cache.GrantCacheSize,
		GrantCacheTTL:   cfg.Cache.GrantCacheTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	userRepo := storage.NewUserRepository(db)
	modelRepo := storage.NewModelRepository(db)
	grantRepo := storage.NewGrantRepository(db)
	requestRepo := storage.NewRequestRepository(db)
	promoRepo := storage.NewPromoRepository(db)

	imageStore, err := images.NewStore(cfg.Images.Dir, cfg.Images.PublicBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	extractor := extract.NewExtractor(imageStore, utils.NewLogger("extract"))

	providerClient := providers.NewClient(providers.ClientConfig{
		BaseURL:        cfg.Provider.BaseURL,
		RequestTimeout: cfg.Provider.RequestTimeout,
	})

	dispatcher := dispatch.NewDispatcher(providerClient, extractor)

	rateSource := rates.NewCBRSource(rates.CBRSourceConfig{
		URL:      cfg.Billing.RateSourceURL,
		Fallback: cfg.Billing.FallbackRate,
		Timeout:  cfg.Billing.RateTimeout,
	}, utils.NewLogger("rates"))

	coefficient := rates.StaticCoefficient{Value: cfg.Billing.MarkupCoefficient}

	settler := billing.NewSettler(requestRepo, userRepo, rateSource, coefficient,
		utils.NewLogger("billing"))

	auditSink, err := newAuditSink(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit sink: %w", err)
	}

	notifyWorker, err := newNotifyWorker(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	var notifier broker.Notifier
	if notifyWorker != nil {
		notifyWorker.Start(context.Background())
		notifier = notifyWorker
	}

	orchestrator := broker.NewOrchestrator(broker.OrchestratorConfig{
		Grants:     grantRepo,
		Users:      userRepo,
		Models:     modelRepo,
		Requests:   requestRepo,
		Dispatcher: dispatcher,
		Settler:    settler,
		Encryption: encryption,
		Notifier:   notifier,
		Audit:      logging.NewRecorder(auditSink),
		Floor:      cfg.Billing.BalanceFloor,
		Logger:     utils.NewLogger("broker"),
	})

	deps := &Dependencies{
		DB:           db,
		Users:        userRepo,
		Models:       modelRepo,
		Grants:       grantRepo,
		Requests:     requestRepo,
		Promos:       promoRepo,
		Encryption:   encryption,
		Orchestrator: orchestrator,
		ImageStore:   imageStore,
		AuditSink:    auditSink,
		NotifyWorker: notifyWorker,
		Config:       cfg,
		Logger:       logger,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

// newAuditSink builds the settlement audit sink: S3 when enabled, local
// JSONL file otherwise
func newAuditSink(cfg *config.Config) (logging.Sink, error) {
	sinkCfg := logging.BufferedSinkConfig{
		BufferSize:    cfg.Audit.BufferSize,
		FlushSize:     cfg.Audit.FlushSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}

	if cfg.Audit.S3Enabled {
		writer, err := logging.NewS3Writer(context.Background(),
			cfg.Audit.S3Bucket, cfg.Audit.S3Region, cfg.Audit.S3Prefix, cfg.Audit.PodName)
		if err != nil {
			return nil, err
		}
		return logging.NewBufferedSink(writer, sinkCfg), nil
	}

	if cfg.Audit.FilePath != "" {
		return logging.NewBufferedSink(logging.NewFileWriter(cfg.Audit.FilePath), sinkCfg), nil
	}

	return logging.NewNoopSink(), nil
}

// newNotifyWorker builds the Telegram notification worker, Redis-backed
// when Redis is configured. Returns nil when notifications are disabled.
func newNotifyWorker(cfg *config.Config) (*notify.Worker, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil, nil
	}

	sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}

	queueCfg := queue.DefaultConfig("notifications")
	queueCfg.BatchSize = 10
	queueCfg.UseRedis = cfg.Redis.Address != ""
	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB
	queueCfg.RedisPoolSize = cfg.Redis.PoolSize
	queueCfg.RedisMinIdleConns = cfg.Redis.MinIdleConns
	queueCfg.RedisDialTimeout = cfg.Redis.DialTimeout
	queueCfg.RedisReadTimeout = cfg.Redis.ReadTimeout
	queueCfg.RedisWriteTimeout = cfg.Redis.WriteTimeout

	q, dlq, err := queue.New(queueCfg)
	if err != nil {
		return nil, err
	}

	return notify.NewWorker(q, dlq, sender, queueCfg, cfg.Billing.BalanceFloor), nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	// Bot-facing user endpoints
	mux.HandleFunc("/enter", deps.handleEnter)
	mux.HandleFunc("/getBalance", deps.handleGetBalance)
	mux.HandleFunc("/getAiModels", deps.handleGetAiModels)
	mux.HandleFunc("/chooseAiModel", deps.handleChooseAiModel)
	mux.HandleFunc("/getUserChosenModels", deps.handleGetUserChosenModels)
	mux.HandleFunc("/deleteChosenModel", deps.handleDeleteChosenModel)
	mux.HandleFunc("/applyPromo", deps.handleApplyPromo)
	mux.HandleFunc("/webhook_payment", deps.handlePaymentWebhook)

	// Request submission, authorized by grant token
	mux.HandleFunc("/request", deps.handleRequest)

	// Generated images
	mux.Handle("/images/", http.StripPrefix("/images/",
		http.FileServer(http.Dir(deps.ImageStore.Dir()))))

	// Health check
	mux.HandleFunc("/health", deps.handleHealth)

	// Admin surface
	mux.HandleFunc("/admin/auth/login", deps.handleAdminLogin)
	adminJWT := middleware.AdminJWT(cfg.JWTSecret)
	mux.Handle("/admin/models", adminJWT(http.HandlerFunc(deps.handleAdminModels)))
}

// Close shuts down background workers and connections
func (deps *Dependencies) Close() error {
	if deps.NotifyWorker != nil {
		deps.NotifyWorker.Stop()
	}
	if deps.AuditSink != nil {
		deps.AuditSink.Close()
	}
	return deps.DB.Close()
}
