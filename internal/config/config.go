package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Stripe      StripeConfig
	S3          S3Config
	Redis       RedisConfig
	Backup      BackupConfig
	Scheduler   SchedulerConfig
	Tasks       TasksConfig
	Log         LogConfig
}

type HTTPConfig struct {
	Host            string
	Port            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// LoginRateLimit is the number of login attempts allowed per client IP
	// per RateLimitWindow.
	LoginRateLimit  int
	RateLimitWindow time.Duration
	// AllowedOrigins are host patterns accepted for websocket upgrades.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	ChildTokenTTL time.Duration
	AdminEmail    string
	AdminPassword string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Enabled reports whether billing routes should be served.
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

type S3Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	MaxUploadSize int64
}

// Enabled reports whether uploads can be stored.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

type RedisConfig struct {
	URL string
}

// BackupConfig controls encrypted database snapshots. Snapshots go to the
// S3 bucket and need both the bucket and a passphrase.
type BackupConfig struct {
	Passphrase    string
	Schedule      string
	Prefix        string
	RetentionDays int
}

func (c BackupConfig) Enabled() bool { return c.Passphrase != "" }

type SchedulerConfig struct {
	Enabled bool
	// LateSweepSpec is a robfig/cron schedule such as "@every 1h" or "0 */15 * * * *".
	LateSweepSpec string
}

type TasksConfig struct {
	// DefaultRewardPoints is used when a task is created without explicit points.
	DefaultRewardPoints int
}

type LogConfig struct {
	Level  string
	Format string
}

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:            getString("HOST", "0.0.0.0"),
			Port:            getString("PORT", "8080"),
			BaseURL:         getString("BASE_URL", "http://localhost:8080"),
			ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			LoginRateLimit:  getInt("LOGIN_RATE_LIMIT", 10),
			RateLimitWindow: getDuration("LOGIN_RATE_WINDOW", time.Minute),
			AllowedOrigins:  getList("ALLOWED_ORIGINS", []string{"localhost:*"}),
		},
		Database: DatabaseConfig{
			Path: getString("DB_PATH", "familyhub.db"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			JWTIssuer:     getString("JWT_ISSUER", "familyhub"),
			TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
			ChildTokenTTL: getDuration("CHILD_TOKEN_TTL", time.Hour),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    getString("STRIPE_SUCCESS_URL", "http://localhost:3000/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getString("STRIPE_CANCEL_URL", "http://localhost:3000/cancel"),
		},
		S3: S3Config{
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        getString("S3_REGION", "us-east-1"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
			MaxUploadSize: int64(getInt("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Backup: BackupConfig{
			Passphrase:    os.Getenv("BACKUP_PASSPHRASE"),
			Schedule:      getString("BACKUP_SCHEDULE", "@daily"),
			Prefix:        getString("BACKUP_PREFIX", "backups/"),
			RetentionDays: getInt("BACKUP_RETENTION_DAYS", 30),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBool("LATE_SWEEP_ENABLED", true),
			LateSweepSpec: getString("LATE_SWEEP_SCHEDULE", "@every 1h"),
		},
		Tasks: TasksConfig{
			DefaultRewardPoints: getInt("TASKS_DEFAULT_REWARD_POINTS", 10),
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "text"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD must be set when ADMIN_EMAIL is")
	}
	if cfg.Stripe.Enabled() && cfg.Stripe.WebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET must be set when STRIPE_SECRET_KEY is")
	}
	if cfg.HTTP.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_WINDOW must be positive")
	}
	if cfg.Backup.Enabled() && !cfg.S3.Enabled() {
		return nil, fmt.Errorf("S3_BUCKET must be set when BACKUP_PASSPHRASE is")
	}
	if cfg.Backup.RetentionDays <= 0 {
		return nil, fmt.Errorf("BACKUP_RETENTION_DAYS must be positive")
	}
	if cfg.Tasks.DefaultRewardPoints < 0 {
		return nil, fmt.Errorf("TASKS_DEFAULT_REWARD_POINTS must not be negative")
	}

	return cfg, nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
