package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/toolhub/api/handlers"
	"github.com/BaSui01/toolhub/config"
	"github.com/BaSui01/toolhub/internal/cache"
	"github.com/BaSui01/toolhub/internal/database"
	"github.com/BaSui01/toolhub/internal/metrics"
	"github.com/BaSui01/toolhub/internal/server"
	"github.com/BaSui01/toolhub/internal/telemetry"
	"github.com/BaSui01/toolhub/registry"
	"github.com/BaSui01/toolhub/store"
	"github.com/BaSui01/toolhub/types"
	"github.com/BaSui01/toolhub/vault"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 ToolHub 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers
	db     *gorm.DB

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 基础设施
	pool         *database.PoolManager
	cacheManager *cache.Manager

	// 业务组件
	registry *registry.Registry

	// Handlers
	providerHandler *handlers.ProviderHandler
	healthHandler   *handlers.HealthHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 后台 goroutine 生命周期管理（限流清理、指标采样）
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
		db:     db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("toolhub", s.logger)
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())

	// 2. 初始化基础设施与业务组件
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 5. 周期采样数据库连接池指标
	go s.sampleDBStats()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 初始化数据库连接池、Redis、凭据加密器、提供者注册表及 handlers
func (s *Server) initComponents() error {
	pool, err := database.NewPoolManager(s.db, database.PoolConfig{
		MaxIdleConns:    s.cfg.Database.MaxIdleConns,
		MaxOpenConns:    s.cfg.Database.MaxOpenConns,
		ConnMaxLifetime: s.cfg.Database.ConnMaxLifetime,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("create pool manager: %w", err)
	}
	s.pool = pool

	cacheManager, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("create cache manager: %w", err)
	}
	s.cacheManager = cacheManager
	cacheManager.SetMetrics(s.metricsCollector)

	cipher, err := vault.NewCipher([]byte(s.cfg.Vault.SecretKey))
	if err != nil {
		return fmt.Errorf("create credential cipher: %w", err)
	}

	records := store.NewProviderRepo(pool, s.logger)
	labels := store.NewLabelStore(pool, s.logger)
	fetcher := registry.NewHTTPFetcher(nil, s.logger)

	s.registry = registry.New(records, labels, fetcher, cipher, cacheManager, s.logger)

	// Handlers
	s.providerHandler = handlers.NewProviderHandler(s.registry, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewDatabaseCheck(pool))
	s.healthHandler.RegisterCheck(handlers.NewRedisCheck(cacheManager))

	s.logger.Info("Components initialized")
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 提供者管理 API
	// ========================================
	mux.HandleFunc("/api/v1/providers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.providerHandler.HandleCreate(w, r)
		case http.MethodGet:
			s.providerHandler.HandleList(w, r)
		default:
			handlers.WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", s.logger)
		}
	})
	mux.HandleFunc("/api/v1/providers/credentials-schema", s.providerHandler.HandleCredentialSchema)
	mux.HandleFunc("/api/v1/providers/parse", s.providerHandler.HandleParseSchema)
	mux.HandleFunc("/api/v1/providers/test", s.providerHandler.HandleTest)
	mux.HandleFunc("/api/v1/providers/remote-schema", s.providerHandler.HandleFetchSchema)
	mux.HandleFunc("/api/v1/providers/{name}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.providerHandler.HandleGet(w, r)
		case http.MethodPut:
			s.providerHandler.HandleUpdate(w, r)
		case http.MethodDelete:
			s.providerHandler.HandleDelete(w, r)
		default:
			handlers.WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrValidation, "method not allowed", s.logger)
		}
	})
	mux.HandleFunc("/api/v1/providers/{name}/tools", s.providerHandler.HandleListTools)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger),
		TenantRateLimiter(s.bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// sampleDBStats 周期性地把数据库连接池状态写入 Prometheus 指标
func (s *Server) sampleDBStats() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.bgCtx.Done():
			return
		case <-ticker.C:
			stats := s.pool.Stats()
			s.metricsCollector.RecordDBConnections(s.cfg.Database.Driver, stats.OpenConnections, stats.Idle)
		}
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止后台 goroutine（限流清理、指标采样）
	if s.bgCancel != nil {
		s.bgCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 Redis 连接
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache manager close error", zap.Error(err))
		}
	}

	// 5. 刷新遥测数据
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Warn("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
