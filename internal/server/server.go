package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fundnest/fundnest-api/internal/api"
	"github.com/fundnest/fundnest-api/internal/auth"
	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/ratelimit"
)

const readinessInterval = 15 * time.Second

type Server struct {
	config       *config.AppConfig
	log          *zap.Logger
	engine       *gin.Engine
	httpServer   *http.Server
	grpcServer   *grpc.Server
	health       *health.Server
	repository   auth.Repository
	stopReadyMon chan struct{}
	wg           sync.WaitGroup
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.AuthMiddleware
	Limiters       *ratelimit.Limiters
	Repository     auth.Repository
	Registry       *prometheus.Registry
}

func NewServer(p Params) (*Server, error) {
	engine, err := NewRouter(p)
	if err != nil {
		return nil, err
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(p.Logger)))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if p.Config.GRPC.EnableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		config: p.Config,
		log:    p.Logger,
		engine: engine,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(p.Config.Server.Host, p.Config.Server.Port),
			Handler:      engine,
			ReadTimeout:  p.Config.Server.ReadTimeout,
			WriteTimeout: p.Config.Server.WriteTimeout,
		},
		grpcServer:   grpcServer,
		health:       healthServer,
		repository:   p.Repository,
		stopReadyMon: make(chan struct{}),
	}, nil
}

// NewRouter builds the gin engine: auth routes behind their limiters, plus
// health and metrics endpoints. Only peers listed in server.trusted_proxies
// may set the client address through X-Forwarded-For.
func NewRouter(p Params) (*gin.Engine, error) {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(p.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(p.Logger),
		requestTimeout(p.Config.Server.RequestTimeout),
	)

	r.GET(api.Health, healthHandler(p.Repository))
	r.GET(api.Metrics, gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))

	limiters := map[string]*ratelimit.Limiter{
		api.LimiterGeneral: p.Limiters.General,
		api.LimiterLogin:   p.Limiters.Login,
	}
	limit := func(path string) gin.HandlerFunc {
		if name, ok := api.RateLimitedEndpoints[path]; ok {
			if l := limiters[name]; l != nil {
				return l.Middleware(p.Logger)
			}
		}
		return func(c *gin.Context) { c.Next() }
	}

	group := r.Group(api.AuthGroup)
	group.POST(api.AuthRegister, limit(api.AuthRegister), p.AuthHandler.Register)
	group.POST(api.AuthLogin, limit(api.AuthLogin), p.AuthHandler.Login)
	group.POST(api.AuthForgotPassword, limit(api.AuthForgotPassword), p.AuthHandler.ForgotPassword)
	group.POST(api.AuthResetPassword, limit(api.AuthResetPassword), p.AuthHandler.ResetPassword)
	group.GET(api.AuthVerify, p.AuthHandler.Verify)
	group.GET(api.AuthMe, p.AuthMiddleware.RequireAuth(), p.AuthHandler.GetMe)
	group.PATCH(api.AuthMe, p.AuthMiddleware.RequireAuth(), p.AuthHandler.UpdateMe)

	return r, nil
}

// Start binds both listeners and serves in the background.
func (s *Server) Start() error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcAddr := net.JoinHostPort(s.config.GRPC.Host, s.config.GRPC.Port)
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.log.Info("Starting servers",
		zap.String("http_address", s.httpServer.Addr),
		zap.String("grpc_address", grpcAddr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	go func() {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			s.log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	s.checkReadiness(context.Background())
	s.wg.Add(1)
	go s.readinessLoop()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down servers")
	close(s.stopReadyMon)
	s.wg.Wait()

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) checkReadiness(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.repository.Ping(ctx); err != nil {
		s.log.Warn("credential store not ready", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *Server) readinessLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopReadyMon:
			return
		case <-ticker.C:
			s.checkReadiness(context.Background())
		}
	}
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", config.Env)
		enc.AddString("store", config.Database.Driver)
		enc.AddString("ratelimit_backend", config.RateLimit.Backend)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddDuration("token_expiration", config.Auth.TokenExpiration)
		return nil
	})
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}
