package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Google    GoogleConfig
	MinIO     MinIOConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig configures session tokens. Secret is base64-encoded.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AIConfig configures the generative backend and the retry policy around it.
type AIConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// AdminConfig lists the emails granted the ADMIN role at signup.
type AdminConfig struct {
	Emails []string
}

type CORSConfig struct {
	FrontendURL string
}

type GoogleConfig struct {
	ClientID string
	Issuer   string
}

// MinIOConfig configures transcript exports. Exports are disabled when
// Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "aldebaran")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("JWT_EXPIRATION_MINUTES", 1440)
	viper.SetDefault("AI_PROVIDER", "openai")
	viper.SetDefault("AI_MODEL", "gpt-4o-mini")
	viper.SetDefault("AI_MAX_ATTEMPTS", 3)
	viper.SetDefault("AI_BASE_DELAY_MS", 1000)
	viper.SetDefault("AI_ATTEMPT_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("FRONTEND_URL", "http://localhost:5173")
	viper.SetDefault("GOOGLE_ISSUER", "https://accounts.google.com")
	viper.SetDefault("MINIO_BUCKET", "aldebaran-transcripts")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Expiration: time.Duration(viper.GetInt("JWT_EXPIRATION_MINUTES")) * time.Minute,
		},
		AI: AIConfig{
			Provider:       strings.ToLower(viper.GetString("AI_PROVIDER")),
			Model:          viper.GetString("AI_MODEL"),
			APIKey:         os.Getenv("AI_API_KEY"),
			BaseURL:        viper.GetString("AI_BASE_URL"),
			MaxAttempts:    viper.GetInt("AI_MAX_ATTEMPTS"),
			BaseDelay:      time.Duration(viper.GetInt("AI_BASE_DELAY_MS")) * time.Millisecond,
			AttemptTimeout: time.Duration(viper.GetInt("AI_ATTEMPT_TIMEOUT_SECONDS")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Admin: AdminConfig{
			Emails: splitList(viper.GetString("ADMIN_EMAILS")),
		},
		CORS: CORSConfig{
			FrontendURL: viper.GetString("FRONTEND_URL"),
		},
		Google: GoogleConfig{
			ClientID: viper.GetString("GOOGLE_CLIENT_ID"),
			Issuer:   viper.GetString("GOOGLE_ISSUER"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure base64 value in production")
	}
	if cfg.AI.MaxAttempts < 1 {
		cfg.AI.MaxAttempts = 1
	}

	return cfg, nil
}

// splitList parses a comma-separated env value into lower-cased, trimmed entries.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
