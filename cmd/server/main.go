// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"xuanji-chat-go/internal/config"
	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/handler"
	"xuanji-chat-go/internal/intent"
	"xuanji-chat-go/internal/middleware"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/internal/repository"
	"xuanji-chat-go/internal/service"
	"xuanji-chat-go/pkg/analyzer"
	"xuanji-chat-go/pkg/database"
	"xuanji-chat-go/pkg/kafka"
	"xuanji-chat-go/pkg/llm"
	"xuanji-chat-go/pkg/log"
)

func main() {
	configPath := os.Getenv("XUANJI_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	// 1. 初始化配置
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 降级编排器
	classifier, err := degradation.NewClassifier(degradation.ThresholdsFromConfig(cfg.Confidence))
	if err != nil {
		log.Fatal("置信度阈值非法", err)
	}
	orchestrator := degradation.NewOrchestrator(classifier, degradation.ManualConfidence{
		Bazi:     cfg.ManualInput.BaziConfidence,
		Fengshui: cfg.ManualInput.FengshuiConfidence,
		Compass:  cfg.ManualInput.CompassConfidence,
	})

	// 4. 会话存储
	var rdb *redis.Client
	var contextRepo repository.ContextRepository
	switch cfg.Session.Store {
	case "memory":
		contextRepo = repository.NewMemoryContextRepository(nil)
		log.Warnf("使用进程内会话存储，重启后会话将丢失")
	default:
		rdb, err = database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		contextRepo = repository.NewRedisContextRepository(rdb, cfg.Session.TTL())
	}

	// 5. 分析历史（可选）与事件投递
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var historyService service.AnalysisHistoryService
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN, &model.AnalysisRecord{})
		if err != nil {
			log.Fatal("MySQL 初始化失败", err)
		}
		historyService = service.NewAnalysisHistoryService(repository.NewAnalysisRecordRepository(db))
	}

	var publisher service.EventPublisher
	var producer *kafka.Producer
	switch {
	case cfg.Kafka.Enabled:
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
		if historyService != nil {
			go kafka.StartConsumer(bgCtx, cfg.Kafka, historyService, rdb)
		}
	case historyService != nil:
		// 未启用 Kafka 时同步落库
		publisher = service.EventPublisherFunc(historyService.HandleAnalysisEvent)
	}

	// 6. 外部分析器与解读
	analyzers := make(map[model.Domain]analyzer.Analyzer, len(cfg.Analysis.Analyzers))
	for name, acfg := range cfg.Analysis.Analyzers {
		domain := model.Domain(name)
		if !domain.Remote() || acfg.BaseURL == "" {
			log.Warnf("忽略分析器配置 %q", name)
			continue
		}
		analyzers[domain] = analyzer.NewClient(name, acfg)
	}
	runner := service.NewAnalysisRunner(analyzers, orchestrator, cfg.Analysis.Timeout())

	var llmClient llm.Client
	if cfg.LLM.Enabled() {
		llmClient = llm.NewClient(cfg.LLM)
	} else {
		log.Info("未配置 LLM，使用模板解读")
	}
	explainer := service.NewExplainer(llmClient, cfg.LLM.Prompt.Rules, llm.ParamsFromConfig(cfg.LLM.Generation))

	sessionService := service.NewSessionService(contextRepo, intent.NewDetector(), orchestrator, runner, explainer, publisher,
		service.SessionOptions{
			MaxMessages: cfg.Session.MaxMessages,
			IdleTimeout: cfg.Session.IdleTimeout(),
		})

	// 7. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, sessionService, historyService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopBackground()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Warnf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("服务已优雅关闭")
}
