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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/handlers"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/app"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/config"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/logger"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	log, err := logger.New(logger.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("config loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.Bool("mongo", cfg.MongoDB.URI != ""),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("google", cfg.Google.ClientID != ""),
		zap.Bool("minio", cfg.MinIO.Endpoint != ""))

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.Named("http")), middleware.CORS(cfg.CORS.FrontendURL))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := a.Ready(c.Request.Context())
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	var google handlers.IDTokenVerifier
	if a.Google != nil {
		google = a.Google
	}
	handlers.Routes{
		Auth:          handlers.NewAuthHandler(a.Users, a.Tokens, google, log.Named("auth")),
		Conversations: handlers.NewConversationHandler(a.Conversations, a.Pipeline, a.Exporter, log.Named("conversations")),
		Stress:        handlers.NewStressHandler(a.Stress, log.Named("stress")),
		Chat:          handlers.NewChatSocket(a.Conversations, a.Pipeline, a.Tokens, cfg.CORS.FrontendURL, log.Named("chat")),
		Tokens:        a.Tokens,
		Users:         a.Users,
		Limiter:       a.Limiter,
	}.Mount(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger replaces gin.Logger with structured access logs.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
