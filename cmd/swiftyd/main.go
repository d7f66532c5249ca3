package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"SwiftyBank/internal/api"
	"SwiftyBank/internal/bureau"
	"SwiftyBank/internal/config"
	"SwiftyBank/internal/crm"
	"SwiftyBank/internal/handler"
	"SwiftyBank/internal/llm"
	"SwiftyBank/internal/llm/ollama"
	"SwiftyBank/internal/loan"
	"SwiftyBank/internal/observability/alerting"
	"SwiftyBank/internal/observability/metrics"
	"SwiftyBank/internal/orchestrator"
	"SwiftyBank/internal/session"
	"SwiftyBank/internal/transcript"
	"SwiftyBank/pkg/logger"
)

// main 是 swiftyd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("swiftyd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 缺失不算错误，容器部署通常直接注入环境变量。
	_ = godotenv.Load()

	configPath := os.Getenv("SWIFTY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "swifty.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 会话存储。
	var sessions session.Store
	switch cfg.Storage.Sessions.Driver {
	case "", "memory":
		sessions = session.NewMemoryStore()
	case "mysql":
		store, err := session.NewSQLStore(session.SQLConfig{
			DSN:             cfg.Storage.Sessions.DSN,
			MaxOpenConns:    cfg.Storage.Sessions.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Sessions.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.Sessions.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		sessions = store
	default:
		return config.ErrUnsupportedDriver
	}

	if cfg.Storage.Cache.Enabled {
		cached, err := session.NewCachedStore(sessions, session.CacheConfig{
			Address:  cfg.Storage.Cache.Address,
			Password: cfg.Storage.Cache.Password,
			DB:       cfg.Storage.Cache.DB,
			TTL:      time.Duration(cfg.Storage.Cache.TTLSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		defer cached.Close()
		sessions = cached
	}

	// 对话事件外发通道。
	var publisher transcript.Publisher
	switch cfg.Transcript.Driver {
	case "", "none":
		publisher = transcript.NopPublisher{}
	case "rabbitmq":
		rmq, err := transcript.NewRabbitMQPublisher(transcript.RabbitMQConfig{
			URL:        cfg.Transcript.URL,
			Queue:      cfg.Transcript.Queue,
			Durable:    cfg.Transcript.Durable,
			AutoDelete: cfg.Transcript.AutoDelete,
		})
		if err != nil {
			return err
		}
		defer rmq.Close()
		publisher = rmq
	default:
		return config.ErrUnsupportedDriver
	}

	// 静态数据源缺失时降级为内置兜底，不阻塞启动。
	bureauProvider, err := bureau.LoadStaticProvider(cfg.Data.BureauPath)
	if err != nil {
		logger.L().Warn("征信档案加载失败，使用兜底数据", "path", cfg.Data.BureauPath, "error", err)
		bureauProvider = bureau.NewStaticProvider(nil)
	}
	crmProvider, err := crm.LoadStaticProvider(cfg.Data.ProfilePath)
	if err != nil {
		logger.L().Warn("客户档案加载失败，使用兜底数据", "path", cfg.Data.ProfilePath, "error", err)
		crmProvider = crm.NewStaticProvider(nil)
	}

	// 推理网关。
	llmClient, err := ollama.NewClient(ollama.Config{
		Endpoint: cfg.LLM.URL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout(),
	})
	if err != nil {
		return err
	}
	gateway := llm.NewGateway(llmClient,
		llm.WithRetries(cfg.LLM.MaxRetries),
		llm.WithBackoff(cfg.LLM.Backoff()),
		llm.WithAttemptTimeout(cfg.LLM.Timeout()),
		llm.WithDegradeHook(func(attempts int, cause error) {
			metrics.ObserveDegraded("gateway")
			logger.L().Warn("推理服务降级", "attempts", attempts, "error", cause)
		}),
	)

	// 告警通道按配置装配，未配置的渠道直接跳过。
	var notifiers []alerting.Notifier
	if cfg.Alerting.Slack.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.SlackNotifier{
			Sender:    &alerting.SlackWebhookSender{WebhookURL: cfg.Alerting.Slack.WebhookURL},
			ChannelID: cfg.Alerting.Slack.Channel,
		})
	}
	if cfg.Alerting.Email.SMTPAddr != "" {
		notifiers = append(notifiers, &alerting.EmailNotifier{
			Sender: &alerting.SMTPSender{
				Addr:     cfg.Alerting.Email.SMTPAddr,
				From:     cfg.Alerting.Email.From,
				Username: cfg.Alerting.Email.Username,
				Password: cfg.Alerting.Email.Password,
			},
			To:            cfg.Alerting.Email.To,
			SubjectPrefix: "[SwiftyBank] ",
		})
	}
	var alerter alerting.Dispatcher
	if len(notifiers) > 0 {
		alerter = alerting.NewFanout(notifiers...)
	}

	loans := loan.NewMemoryStore()

	registry := handler.Registry{
		"SalesAgent":        handler.NewSalesHandler(gateway),
		"VerificationAgent": handler.NewVerificationHandler(),
		"UnderwritingAgent": handler.NewUnderwritingHandler(bureauProvider),
		"SanctionAgent":     handler.NewSanctionHandler(loans),
		"SupportAgent":      handler.NewSupportHandler(crmProvider, loans),
		"InvestmentAgent":   handler.NewInvestmentHandler(gateway, crmProvider),
	}

	engine := orchestrator.New(registry, sessions, orchestrator.Options{
		Transcript: publisher,
		Alerts:     alerter,
	})

	// 指标可以在独立端口上再暴露一份，便于内网采集。
	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务退出", "address", cfg.Server.MetricsAddress, "error", err)
			}
		}()
	}

	logger.L().Info("swiftyd 启动", "address", cfg.Server.Address)
	server := api.NewServer(cfg.Server.Address, engine, sessions, bureauProvider)
	return server.Start(ctx)
}
