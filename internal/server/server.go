package server

import (
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/config"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/logger"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/metrics"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/pipeline"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
)

// Server HTTP服务器
type Server struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	store   *store.Store
	metrics *metrics.Manager
	log     *zap.Logger
	runner  *pipeline.Runner

	// 同一时间只允许一次运行，避免并发写同一个输出文件
	runMu sync.Mutex
}

// Option 配置 Server
type Option func(*Server)

// WithStore 设置运行记录库
func WithStore(st *store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithMetrics 设置指标管理器
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, opts ...Option) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	if s.metrics == nil {
		s.metrics = metrics.NewManager()
	}
	s.runner = pipeline.NewRunner(
		pipeline.WithLogger(s.log),
		pipeline.WithMetrics(s.metrics),
		pipeline.WithStore(s.store),
	)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/health", s.Health)
		api.POST("/runs", s.StartRun)
		api.GET("/runs", s.ListRuns)
		api.GET("/runs/:id", s.GetRun)
		api.GET("/runs/:id/files", s.ListRunFiles)
		api.GET("/periods", s.ListPeriods)
	}

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Handler 返回路由（用于测试）
func (s *Server) Handler() *gin.Engine {
	return s.router
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
