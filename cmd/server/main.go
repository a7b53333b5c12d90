// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pmatch-go/internal/config"
	"pmatch-go/internal/handler"
	"pmatch-go/internal/middleware"
	"pmatch-go/internal/model"
	"pmatch-go/internal/pipeline"
	"pmatch-go/internal/repository"
	"pmatch-go/internal/service"
	"pmatch-go/pkg/database"
	"pmatch-go/pkg/embedding"
	"pmatch-go/pkg/es"
	"pmatch-go/pkg/kafka"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/storage"
	"pmatch-go/pkg/tika"
	"pmatch-go/pkg/token"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化外部依赖
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Profile{}, &model.User{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}

	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	minioStore, err := storage.NewStorage(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()
	consumer := kafka.NewConsumer(cfg.Kafka, rdb)

	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	sessionManager := token.NewSessionManager(cfg.Session.Secret, cfg.Session.ExpireHours)

	// 4. 初始化 Repository
	profileRepo := repository.NewProfileRepository(db)
	userRepo := repository.NewUserRepository(db)

	// 5. 初始化 Service (依赖注入)
	instCache := service.NewRedisInstitutionCache(rdb)
	searchService := service.NewSearchService(esClient, profileRepo, instCache,
		cfg.Embedding.Dimensions, cfg.Match.MaxTopK)
	matchService := service.NewMatchService(embeddingClient, searchService, userRepo, profileRepo,
		cfg.Match.MaxAbstractsPerHit)
	ingestService := service.NewIngestService(profileRepo, producer)
	uploadService := service.NewUploadService(userRepo, minioStore, tikaClient, embeddingClient, sessionManager)

	// 6. 初始化向量化管道并启动后台消费者
	processor := pipeline.NewProcessor(profileRepo, embeddingClient, esClient, cfg.Embedding.Model)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go consumer.Start(consumerCtx, processor)

	// 6.1 后台执行一次种子导入（幂等，文件不存在则跳过）
	if cfg.Seed.CSVPath != "" {
		go func() {
			if _, err := os.Stat(cfg.Seed.CSVPath); err != nil {
				log.Infof("种子文件 '%s' 不存在, 跳过导入", cfg.Seed.CSVPath)
				return
			}
			if _, err := ingestService.SeedFromCSV(consumerCtx, cfg.Seed.CSVPath); err != nil {
				log.Errorf("种子导入失败: %v", err)
			}
		}()
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	matchHandler := handler.NewMatchHandler(matchService, cfg.Match.DefaultTopK)
	profileHandler := handler.NewProfileHandler(ingestService, searchService)
	uploadHandler := handler.NewUploadHandler(uploadService)

	r.GET("/healthz", handler.Health)

	apiV1 := r.Group("/api/v1")
	{
		match := apiV1.Group("/match")
		{
			match.POST("/text", matchHandler.MatchByText)

			// 按上传文档匹配需要携带会话 token
			authed := match.Group("/")
			authed.Use(middleware.SessionAuth(sessionManager))
			{
				authed.POST("/me", matchHandler.MatchByUser)
			}
		}

		profiles := apiV1.Group("/profiles")
		{
			profiles.POST("", profileHandler.IngestProfile)
			profiles.GET("/institutions", profileHandler.ListInstitutions)
		}

		upload := apiV1.Group("/upload")
		// 首次上传无会话，携带有效 token 时覆盖同一用户的文档
		upload.Use(middleware.OptionalSessionAuth(sessionManager))
		{
			upload.POST("/document", uploadHandler.UploadDocument)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	cancelConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
