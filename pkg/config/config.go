package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

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

	// Timezone names the school's zone. Location is its loaded form and
	// decides which calendar day "today" is.
	Timezone string
	Location *time.Location

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Insights      InsightsConfig
	Reports       ReportsConfig
	Proofs        ProofsConfig
	Roster        RosterConfig
	Notifications NotificationsConfig
	Digest        DigestConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// InsightsConfig tunes the attendance insight pipeline and the analytics cache.
type InsightsConfig struct {
	ExcellentRate   float64
	GoodRate        float64
	ChronicAbsences int
	TrendWindow     int
	RankLimit       int
	DefaultLookback int
	CacheTTL        time.Duration
	HistoryLimit    int
}

// ReportsConfig controls attendance report exports.
type ReportsConfig struct {
	MaxRangeDays int
}

// ProofsConfig controls attendance proof storage & validation.
type ProofsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// RosterConfig limits roster imports.
type RosterConfig struct {
	MaxRows      int
	MaxFileBytes int64
}

// NotificationsConfig configures alert delivery.
type NotificationsConfig struct {
	Enabled        bool
	SendGridAPIKey string
	SenderEmail    string
	SenderName     string
	Workers        int
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
}

// DigestConfig schedules the per-section attendance digest.
type DigestConfig struct {
	Enabled      bool
	Schedule     string
	LookbackDays int
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

	loc, err := loadLocation(v.GetString("APP_TIMEZONE"))
	if err != nil {
		return nil, err
	}
	cfg.Timezone = loc.String()
	cfg.Location = loc

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Insights = InsightsConfig{
		ExcellentRate:   v.GetFloat64("INSIGHTS_EXCELLENT_RATE"),
		GoodRate:        v.GetFloat64("INSIGHTS_GOOD_RATE"),
		ChronicAbsences: v.GetInt("INSIGHTS_CHRONIC_ABSENCES"),
		TrendWindow:     v.GetInt("INSIGHTS_TREND_WINDOW"),
		RankLimit:       v.GetInt("INSIGHTS_RANK_LIMIT"),
		DefaultLookback: v.GetInt("INSIGHTS_DEFAULT_LOOKBACK_DAYS"),
		CacheTTL:        parseDuration(v.GetString("INSIGHTS_CACHE_TTL"), 10*time.Minute),
		HistoryLimit:    v.GetInt("INSIGHTS_HISTORY_LIMIT"),
	}

	cfg.Reports = ReportsConfig{
		MaxRangeDays: v.GetInt("REPORTS_MAX_RANGE_DAYS"),
	}

	maxProofSize := v.GetInt64("PROOFS_MAX_FILE_SIZE")
	if maxProofSize <= 0 {
		maxProofSize = 5 * 1024 * 1024
	}
	cfg.Proofs = ProofsConfig{
		StorageDir:       v.GetString("PROOFS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("PROOFS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("PROOFS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxProofSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("PROOFS_ALLOWED_MIME_TYPES")),
	}

	cfg.Roster = RosterConfig{
		MaxRows:      v.GetInt("ROSTER_MAX_ROWS"),
		MaxFileBytes: v.GetInt64("ROSTER_MAX_FILE_SIZE"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:        v.GetBool("ENABLE_NOTIFICATIONS"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		SenderEmail:    v.GetString("NOTIFICATIONS_SENDER_EMAIL"),
		SenderName:     v.GetString("NOTIFICATIONS_SENDER_NAME"),
		Workers:        v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize:     v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries:     v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Digest = DigestConfig{
		Enabled:      v.GetBool("ENABLE_DIGEST"),
		Schedule:     v.GetString("DIGEST_CRON"),
		LookbackDays: v.GetInt("DIGEST_LOOKBACK_DAYS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INSIGHTS_EXCELLENT_RATE", 90)
	v.SetDefault("INSIGHTS_GOOD_RATE", 80)
	v.SetDefault("INSIGHTS_CHRONIC_ABSENCES", 3)
	v.SetDefault("INSIGHTS_TREND_WINDOW", 7)
	v.SetDefault("INSIGHTS_RANK_LIMIT", 5)
	v.SetDefault("INSIGHTS_DEFAULT_LOOKBACK_DAYS", 30)
	v.SetDefault("INSIGHTS_CACHE_TTL", "10m")
	v.SetDefault("INSIGHTS_HISTORY_LIMIT", 20)

	v.SetDefault("REPORTS_MAX_RANGE_DAYS", 366)

	v.SetDefault("PROOFS_STORAGE_DIR", "./proofs")
	v.SetDefault("PROOFS_SIGNED_URL_SECRET", "dev_proofs_secret")
	v.SetDefault("PROOFS_SIGNED_URL_TTL", "30m")
	v.SetDefault("PROOFS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("PROOFS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,application/pdf")

	v.SetDefault("ROSTER_MAX_ROWS", 2000)
	v.SetDefault("ROSTER_MAX_FILE_SIZE", 2*1024*1024)

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFICATIONS_SENDER_EMAIL", "attendance@localhost")
	v.SetDefault("NOTIFICATIONS_SENDER_NAME", "Attendance Office")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_DIGEST", false)
	v.SetDefault("DIGEST_CRON", "0 17 * * 1-5")
	v.SetDefault("DIGEST_LOOKBACK_DAYS", 14)
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
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
