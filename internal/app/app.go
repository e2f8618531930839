// Package app assembles the services shared by the HTTP server and healthctl
// from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/config"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/database"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/llm"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/oidc"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/storage"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/stress"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/tokens"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/users"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

const mongoConnectAttempts = 5

// App holds the wired services. Optional parts are nil when not configured.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Tokens        *tokens.Service
	Users         *users.Service
	Conversations *conversation.Service
	Pipeline      *conversation.Pipeline
	Stress        *stress.Analyzer
	Exporter      *conversation.Exporter // nil without MINIO_ENDPOINT
	Google        *oidc.Verifier         // nil without GOOGLE_CLIENT_ID
	Limiter       middleware.Limiter     // nil unless RATE_LIMIT_ENABLED

	Mongo *mongo.Client // nil when running on in-memory stores
	Redis *redis.Client // nil unless REDIS_HOST is set and reachable

	closers []func(context.Context) error
}

// Build connects to the configured backends. Without MONGODB_URI the stores
// are in memory, which suits local development and tests only. The caller
// must call Close.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	toks, err := tokens.NewService(cfg.JWT.Secret, cfg.JWT.Expiration, tokens.WithLogger(logger.Named("tokens")))
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	a.Tokens = toks

	convRepo, userRepo, err := a.stores(ctx)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	a.Users = users.NewService(userRepo,
		users.WithAdminEmails(cfg.Admin.Emails),
		users.WithLogger(logger.Named("users")))

	backend, err := llm.New(cfg.AI, logger.Named("llm"))
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("ai backend: %w", err)
	}
	gen := generator.New(backend, cfg.AI.Model, generator.Policy{
		MaxAttempts:    cfg.AI.MaxAttempts,
		BaseDelay:      cfg.AI.BaseDelay,
		AttemptTimeout: cfg.AI.AttemptTimeout,
	}, generator.WithLogger(logger.Named("generator")))

	a.Pipeline = conversation.NewPipeline(convRepo, gen, conversation.WithLogger(logger.Named("pipeline")))
	a.Conversations = conversation.NewService(convRepo, logger.Named("conversations"))
	a.Stress = stress.NewAnalyzer(stress.WithLogger(logger.Named("stress")))

	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warn("transcript export disabled: object storage unavailable", zap.Error(err))
		} else {
			a.Exporter = conversation.NewExporter(a.Pipeline, store, logger.Named("export"))
		}
	}

	if cfg.Google.ClientID != "" {
		v, err := oidc.NewVerifier(ctx, cfg.Google.Issuer, cfg.Google.ClientID)
		if err != nil {
			logger.Warn("google sign-in disabled: failed to initialize OIDC verifier", zap.Error(err))
		} else {
			a.Google = v
		}
	}

	a.connectRedis(ctx)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			a.Limiter = middleware.NewRedisLimiter(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			a.Limiter = middleware.NewMemoryLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
		logger.Info("rate limiter enabled", zap.String("limiter", a.Limiter.Name()))
	}

	return a, nil
}

func (a *App) stores(ctx context.Context) (repository.Repository, users.UserRepository, error) {
	cfg := a.Config
	if cfg.MongoDB.URI == "" {
		a.Logger.Warn("MONGODB_URI not set: using in-memory stores, data is lost on restart")
		return repository.NewMemoryRepo(), users.NewMemoryUserRepository(), nil
	}

	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB, mongoConnectAttempts, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	a.Mongo = client
	a.closers = append(a.closers, client.Disconnect)

	db := client.Database(cfg.MongoDB.Database)
	convRepo := repository.NewMongoRepo(db)
	if err := convRepo.EnsureIndexes(ctx); err != nil {
		return nil, nil, fmt.Errorf("conversation indexes: %w", err)
	}
	userRepo := users.NewMongoUserRepository(db.Collection("users"))
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return nil, nil, fmt.Errorf("user indexes: %w", err)
	}
	a.Logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDB.Database))
	return convRepo, userRepo, nil
}

func (a *App) connectRedis(ctx context.Context) {
	cfg := a.Config.Redis
	if cfg.Host == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Host + ":" + cfg.Port, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("failed to connect to Redis", zap.String("addr", cfg.Host+":"+cfg.Port), zap.Error(err))
		_ = client.Close()
		return
	}
	a.Redis = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.Logger.Info("connected to Redis", zap.String("addr", cfg.Host+":"+cfg.Port))
}

// Ready reports the health of each configured dependency.
func (a *App) Ready(ctx context.Context) map[string]bool {
	deps := map[string]bool{"storage": true}
	if a.Mongo != nil {
		deps["storage"] = a.Mongo.Ping(ctx, nil) == nil
	}
	if a.Config.RateLimit.Enabled && a.Config.RateLimit.UseRedis {
		deps["redis"] = a.Redis != nil && a.Redis.Ping(ctx).Err() == nil
	}
	if a.Config.Google.ClientID != "" {
		deps["oidc"] = a.Google != nil
	}
	return deps
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
