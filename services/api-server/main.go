package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freedkr/moonshot-translate/internal/cache"
	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/database"
	"github.com/freedkr/moonshot-translate/internal/events"
	"github.com/freedkr/moonshot-translate/internal/export"
	"github.com/freedkr/moonshot-translate/internal/imaging"
	"github.com/freedkr/moonshot-translate/internal/pipeline"
	"github.com/freedkr/moonshot-translate/internal/providers"
	"github.com/freedkr/moonshot-translate/internal/storage"
	"github.com/freedkr/moonshot-translate/services/api-server/handlers"
	"github.com/freedkr/moonshot-translate/services/api-server/middleware"
	"github.com/gin-gonic/gin"
)

type Server struct {
	config  *config.Config
	db      *database.PostgreSQLDB
	storage storage.StorageInterface
	router  *gin.Engine
	healthH *handlers.HealthHandlers

	materialStore database.MaterialStore
	hub           *events.Hub
	orchestrator  *pipeline.Orchestrator
	materialH     *handlers.MaterialHandlers
	clientH       *handlers.ClientHandlers
	pool          *pipeline.Pool
	ocrManager    *providers.Manager
	entityManager *providers.Manager
	llmManager    *providers.Manager
}

func main() {
	// 解析命令行参数
	var configPath string
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	// 加载API服务器配置
	cfg, err := config.LoadConfigForService(config.ServiceTypeAPIServer, configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	// 创建服务器
	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	// 启动服务器
	if err := server.Start(); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}

func NewServer(cfg *config.Config) (*Server, error) {
	// 设置Gin模式
	gin.SetMode(cfg.APIServer.Mode)
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	}
	log.Printf("正在初始化数据库连接: db=%s", cfg.Database.Database)
	// 初始化数据库
	dbConfig := &database.PostgreSQLConfig{ // This can be simplified if NewPostgreSQLDB takes config.DatabaseConfig directly
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
	db, err := database.NewPostgreSQLDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	ctx := context.Background()

	// 初始化存储
	storageConfig := &storage.MinIOConfig{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		BucketName:      cfg.Storage.BucketName,
	}
	minioStorage, err := storage.NewMinIOStorage(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	// 确保存储桶存在
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("确保存储桶失败: %w", err)
	}

	healthH := handlers.NewHealthHandlers(db)

	materialStore := database.NewPostgresMaterialStore(db.GetDB())
	if err := materialStore.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate material tables: %w", err)
	}

	listCache, err := cache.NewListCache(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("connect material list cache: %w", err)
	}

	webCaptureCache, err := cache.NewWebCaptureCache(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("connect web-capture cache: %w", err)
	}

	hub := events.NewHub()

	ocrManager := providers.NewManager(providers.ManagerConfig{})
	entityManager := providers.NewManager(providers.ManagerConfig{})
	llmManager := providers.NewManager(providers.ManagerConfig{})

	ocrClient := providers.NewHTTPOCRClient("ocr-service", cfg.Providers.OCR)
	entityClient := providers.NewHTTPEntityClient("entity-service", cfg.Providers.Entity)
	llmClient := providers.NewHTTPLLMClient("llm-service", cfg.Providers.LLM)
	webCaptureClient := providers.NewHTTPWebCaptureClient("web-capture", cfg.Providers.WebCapture)
	pdfRasterizer := providers.NewHTTPPDFRasterizer("pdf-rasterizer", cfg.Providers.PDF)

	ocrManager.RegisterProvider(ocrClient.Name(), ocrClient)
	entityManager.RegisterProvider(entityClient.Name(), entityClient)
	llmManager.RegisterProvider(llmClient.Name(), llmClient)
	ocrManager.Start(ctx)
	entityManager.Start(ctx)
	llmManager.Start(ctx)

	pool := pipeline.NewPool(ctx, cfg.Pipeline.WorkerPoolSize, 0)

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Store:           materialStore,
		Cache:           listCache,
		WebCaptureCache: webCaptureCache,
		Hub:             hub,
		Pool:            pool,
		Config:          cfg.Pipeline,
		Storage:         minioStorage,
		OCR:             ocrClient,
		Entity:          entityClient,
		LLM:             llmClient,
		WebCapture:      webCaptureClient,
		PDF:             pdfRasterizer,
		OCRManager:      ocrManager,
		EntityManager:   entityManager,
		LLMManager:      llmManager,
	})

	ingressBounds := imaging.Bounds{
		MaxDimension: cfg.Pipeline.IngressMaxDimension,
		MaxBytes:     cfg.Pipeline.IngressMaxBytes,
	}
	packager := export.NewPackager(materialStore, minioStorage, export.IdentityTranslator{})
	materialH := handlers.NewMaterialHandlers(orchestrator, materialStore, minioStorage, packager, ingressBounds)
	clientH := handlers.NewClientHandlers(materialStore)

	// 创建路由
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	server := &Server{
		config:        cfg,
		db:            db,
		storage:       minioStorage,
		router:        router,
		healthH:       healthH,
		materialStore: materialStore,
		hub:           hub,
		orchestrator:  orchestrator,
		materialH:     materialH,
		clientH:       clientH,
		pool:          pool,
		ocrManager:    ocrManager,
		entityManager: entityManager,
		llmManager:    llmManager,
	}

	// 设置路由
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// 静态文件服务 - 提供前端页面
	s.router.Static("/static", "./web")
	s.router.StaticFile("/", "./web/index.html")

	api := s.router.Group("/api/v1")

	// 健康检查
	api.GET("/health", s.healthH.Health)
	api.GET("/ready", s.healthH.Ready)

	// Material Processing Pipeline
	clients := s.router.Group("/clients")
	{
		clients.POST("", s.clientH.CreateClient)
		clients.GET("", s.clientH.ListClients)
		clients.GET("/:client_id", s.clientH.GetClient)
		clients.PUT("/:client_id", s.clientH.UpdateClient)
		clients.DELETE("/:client_id", s.clientH.DeleteClient)
		clients.GET("/:client_id/export", s.materialH.ExportClient)

		clients.POST("/:client_id/materials/upload", s.materialH.UploadMaterial)
		clients.POST("/:client_id/materials/urls", s.materialH.UploadURLs)
		clients.GET("/:client_id/materials", s.materialH.ListMaterials)
		clients.POST("/:client_id/materials/translate", s.materialH.TranslateMaterials)
	}

	materials := s.router.Group("/materials")
	{
		materials.GET("/:id", s.materialH.GetMaterial)
		materials.DELETE("/:id", s.materialH.DeleteMaterial)
		materials.POST("/:id/entity-recognition/fast", s.materialH.RecognizeEntitiesFast)
		materials.POST("/:id/entity-recognition/deep", s.materialH.RecognizeEntitiesDeep)
		materials.POST("/:id/confirm-entities", s.materialH.ConfirmEntities)
		materials.POST("/:id/llm-translate", s.materialH.LLMTranslate)
		materials.POST("/:id/retranslate", s.materialH.Retranslate)
		materials.POST("/:id/rotate", s.materialH.Rotate)
		materials.POST("/:id/confirm", s.materialH.Confirm)
		materials.POST("/:id/unconfirm", s.materialH.Unconfirm)
		materials.POST("/:id/save-regions", s.materialH.SaveRegions)
		materials.POST("/:id/save-final-image", s.materialH.SaveFinalImage)
	}

	s.router.GET("/ws/clients/:client_id", s.serveClientEvents)
	s.router.GET("/ws/materials/:id", s.serveMaterialEvents)
}

func (s *Server) serveClientEvents(c *gin.Context) {
	room := events.ClientRoom(c.Param("client_id"))
	if err := s.hub.Serve(c.Writer, c.Request, c.GetString("RequestID"), room); err != nil {
		log.Printf("client event stream closed: %v", err)
	}
}

func (s *Server) serveMaterialEvents(c *gin.Context) {
	room := events.MaterialRoom(c.Param("id"))
	if err := s.hub.Serve(c.Writer, c.Request, c.GetString("RequestID"), room); err != nil {
		log.Printf("material event stream closed: %v", err)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.APIServer.Timeout,
		WriteTimeout: s.config.APIServer.Timeout,
	}

	// 在goroutine中启动服务器
	go func() {
		log.Printf("API服务器启动在 %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	// 创建关闭上下文
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭HTTP服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭失败: %v", err)
		return err
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}

	s.ocrManager.Stop()
	s.entityManager.Stop()
	s.llmManager.Stop()
	s.pool.Stop()

	log.Println("服务器已关闭")
	return nil
}
