package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/KOMKZ/yogan-shield/health"
	"github.com/KOMKZ/yogan-shield/httpx"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/middleware"
	"github.com/KOMKZ/yogan-shield/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// ServerDeps 由 DI 提供给 HTTP 服务的组件，均可为空
type ServerDeps struct {
	Logger      *logger.CtxZapLogger
	Limiter     limiter.Checker
	LimiterCfg  limiter.Config
	LoadShed    *loadshed.Handler
	Telemetry   *telemetry.Manager
	HTTPMetrics *middleware.HTTPMetrics
	Health      *health.Aggregator
}

// HTTPServer gin 引擎与 http.Server
type HTTPServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        ServerConfig
	addr       string
	log        *logger.CtxZapLogger
}

// NewHTTPServer 创建 HTTP 服务并按顺序挂载中间件
//
// 顺序（外到内）：
//
//	Recovery → otelgin → TraceID → RequestLog → ErrorLogging → HTTPMetrics
//	→ CORS → RateLimit → LoadShedding → handler
//
// 限流先于负载削减：超额客户端在任何负载下都拿到 429 与 X-RateLimit-* 头，
// 被限流的请求也不计入负载统计。Recovery 在最外层，LoadShedding 因此能记录
// panic 请求；预检请求在 CORS 处返回，不参与限流与负载统计。
func NewHTTPServer(cfg AppConfig, deps ServerDeps) *HTTPServer {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger("yogan")
	}

	// gin 自身输出（路由注册、debug 信息）走 zap
	gin.DefaultWriter = logger.NewGinLogWriter(log)
	gin.DefaultErrorWriter = logger.NewGinLogWriter(log)
	gin.SetMode(cfg.HTTP.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.Recovery(log))

	if deps.Telemetry != nil && deps.Telemetry.IsEnabled() {
		engine.Use(otelgin.Middleware(deps.Telemetry.GetConfig().ServiceName))
		log.Debug("OpenTelemetry trace middleware registered")
	}

	mw := cfg.Middleware
	if mw.TraceID.Enable {
		traceCfg := middleware.DefaultTraceConfig()
		traceCfg.TraceIDKey = mw.TraceID.TraceIDKey
		traceCfg.TraceIDHeader = mw.TraceID.TraceIDHeader
		traceCfg.EnableResponseHeader = mw.TraceID.EnableResponseHeader
		engine.Use(middleware.TraceID(traceCfg))
	}

	if mw.RequestLog.Enable {
		engine.Use(middleware.RequestLogWithConfig(middleware.RequestLogConfig{
			Logger:    logger.GetLogger("gin-http"),
			SkipPaths: mw.RequestLog.SkipPaths,
		}))
	}

	if cfg.Httpx.Enable {
		engine.Use(httpx.ErrorLoggingMiddleware(cfg.Httpx, logger.GetLogger("httpx")))
	}

	if deps.HTTPMetrics != nil && deps.HTTPMetrics.IsRegistered() {
		engine.Use(deps.HTTPMetrics.Handler())
	}

	if mw.CORS.Enable {
		engine.Use(middleware.CORSWithConfig(mw.CORS.CORSConfig))
	}

	if deps.Limiter != nil && deps.LimiterCfg.Enabled {
		rlCfg := middleware.DefaultRateLimitConfig(deps.Limiter)
		rlCfg.SkipPaths = deps.LimiterCfg.SkipPaths
		engine.Use(middleware.RateLimit(rlCfg))
		log.Debug("rate limit middleware enabled",
			zap.Int64("max_requests", deps.LimiterCfg.MaxRequests),
			zap.Duration("window", deps.LimiterCfg.Window))
	}

	if deps.LoadShed != nil && deps.LoadShed.Config().Enabled {
		engine.Use(middleware.LoadShedding(middleware.DefaultLoadSheddingConfig(deps.LoadShed)))
	}

	if deps.Health != nil {
		middleware.RegisterHealthRoutes(engine, deps.Health)
	}

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	return &HTTPServer{
		engine: engine,
		cfg:    cfg.HTTP,
		addr:   net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		log:    log,
	}
}

// GetEngine 获取 gin 引擎（业务注册路由）
func (s *HTTPServer) GetEngine() *gin.Engine {
	return s.engine
}

// Addr 监听地址；端口为 0 时 Start 之后为实际端口
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start 非阻塞启动；监听失败同步返回
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.log.Info("HTTP server started",
		zap.String("addr", s.addr),
		zap.String("mode", s.cfg.Mode))
	return nil
}

// Shutdown 停止接收新请求并等待进行中的请求完成
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.log.Debug("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	s.log.Debug("HTTP server closed")
	return nil
}

// ShutdownWithTimeout 带超时的 Shutdown
func (s *HTTPServer) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
