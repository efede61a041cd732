package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Cache         CacheConfig
	Password      PasswordConfig
	GitHub        GitHubConfig
	Notifications NotificationsConfig
	Digest        DigestConfig
	Metrics       MetricsConfig
	CORS          CORSConfig
	Log           LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the process-wide signing key. It is loaded once; rotation is unsupported.
type JWTConfig struct {
	Secret            string
	Algorithm         string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// CacheConfig controls how long cached projections are trusted.
type CacheConfig struct {
	FreshnessWindow time.Duration
}

// PasswordConfig tunes the argon2id cost parameters.
type PasswordConfig struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// GitHubConfig configures the GitHub OAuth login. Disabled when ClientID is empty.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Enabled reports whether GitHub login is configured.
func (c GitHubConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// NotificationsConfig tunes the news notification worker pool.
type NotificationsConfig struct {
	Workers     int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DigestConfig schedules the weekly news digest.
type DigestConfig struct {
	Enabled         bool
	Schedule        string
	Timezone        string
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Retention       time.Duration
}

// MetricsConfig controls the JSON metrics export.
type MetricsConfig struct {
	ExportPath string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	accessMinutes := v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")
	if accessMinutes <= 0 {
		accessMinutes = 30
	}
	refreshDays := v.GetInt("REFRESH_TOKEN_EXPIRE_DAYS")
	if refreshDays <= 0 {
		refreshDays = 7
	}
	cfg.JWT = JWTConfig{
		Secret:            v.GetString("SECRET_KEY"),
		Algorithm:         strings.ToUpper(v.GetString("ALGORITHM")),
		Expiration:        time.Duration(accessMinutes) * time.Minute,
		RefreshExpiration: time.Duration(refreshDays) * 24 * time.Hour,
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("SECRET_KEY must be set")
	}

	cfg.Cache = CacheConfig{
		FreshnessWindow: parseDuration(v.GetString("CACHE_FRESHNESS_WINDOW"), 300*time.Second),
	}

	cfg.Password = PasswordConfig{
		Time:     uint32(v.GetUint("PASSWORD_ARGON2_TIME")),
		MemoryKB: uint32(v.GetUint("PASSWORD_ARGON2_MEMORY_KB")),
		Threads:  uint8(v.GetUint("PASSWORD_ARGON2_THREADS")),
	}

	cfg.GitHub = GitHubConfig{
		ClientID:     v.GetString("GITHUB_CLIENT_ID"),
		ClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
		RedirectURI:  v.GetString("GITHUB_REDIRECT_URI"),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:     v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries:  v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		BackoffBase: parseDuration(v.GetString("NOTIFICATIONS_BACKOFF_BASE"), 2*time.Second),
		BackoffMax:  parseDuration(v.GetString("NOTIFICATIONS_BACKOFF_MAX"), 60*time.Second),
	}

	cfg.Digest = DigestConfig{
		Enabled:         v.GetBool("ENABLE_DIGEST"),
		Schedule:        v.GetString("DIGEST_SCHEDULE"),
		Timezone:        v.GetString("DIGEST_TIMEZONE"),
		StorageDir:      v.GetString("DIGEST_STORAGE_DIR"),
		SignedURLSecret: v.GetString("DIGEST_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DIGEST_SIGNED_URL_TTL"), 24*time.Hour),
		Retention:       parseDuration(v.GetString("DIGEST_RETENTION"), 90*24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{ExportPath: v.GetString("METRICS_EXPORT_PATH")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "news")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SECRET_KEY", "dev_secret")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)

	v.SetDefault("CACHE_FRESHNESS_WINDOW", "300s")

	v.SetDefault("PASSWORD_ARGON2_TIME", 2)
	v.SetDefault("PASSWORD_ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("PASSWORD_ARGON2_THREADS", 2)

	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_REDIRECT_URI", "http://localhost:8000/auth/github/callback")

	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_BACKOFF_BASE", "2s")
	v.SetDefault("NOTIFICATIONS_BACKOFF_MAX", "60s")

	v.SetDefault("ENABLE_DIGEST", true)
	v.SetDefault("DIGEST_SCHEDULE", "0 12 * * 0")
	v.SetDefault("DIGEST_TIMEZONE", "Europe/Moscow")
	v.SetDefault("DIGEST_STORAGE_DIR", "./digests")
	v.SetDefault("DIGEST_SIGNED_URL_SECRET", "dev_digest_secret")
	v.SetDefault("DIGEST_SIGNED_URL_TTL", "24h")
	v.SetDefault("DIGEST_RETENTION", "2160h")

	v.SetDefault("METRICS_EXPORT_PATH", "prometheus_metrics.json")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://frontend:3000,http://127.0.0.1:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
