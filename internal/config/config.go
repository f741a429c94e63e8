package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Kiosk        KioskConfig
	Session      SessionConfig
	Attendance   AttendanceConfig
	RateLimit    RateLimitConfig
	Bootstrap    BootstrapConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// StoreConfig selects the record store backend ("postgres" or "memory").
type StoreConfig struct {
	Backend string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig controls notification queueing and delivery.
type NotificationConfig struct {
	WebhookURL      string
	QueueBackend    string
	QueueKey        string
	QueueSize       int
	MaxAttempts     int
	Backoff         time.Duration
	DeliveryTimeout time.Duration
}

// KioskConfig controls QR token issuance and validation.
type KioskConfig struct {
	TokenTTL    time.Duration
	ScanTimeout time.Duration
}

// SessionConfig controls the session registry and its janitor.
type SessionConfig struct {
	Backend        string
	TimeoutMinutes int
	SweepInterval  time.Duration
	TokenRetention time.Duration
}

// AttendanceConfig holds workday policy used to derive attendance status.
type AttendanceConfig struct {
	Timezone         string
	WorkdayStart     string
	WorkdayEnd       string
	LateGraceMinutes int
	DebounceSeconds  int
	MaxShiftHours    int
}

// RateLimitConfig bounds scan and manual entry attempts per client.
type RateLimitConfig struct {
	ScanPerMinute   int
	ManualPerMinute int
}

// BootstrapConfig seeds an administrator into the in-memory store.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "checkin-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "postgres"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueBackend:    getEnv("NOTIFY_QUEUE_BACKEND", "redis"),
			QueueKey:        getEnv("NOTIFY_QUEUE_KEY", "checkin:notifications"),
			QueueSize:       getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			MaxAttempts:     getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			Backoff:         getEnvAsDuration("NOTIFY_BACKOFF", 500*time.Millisecond),
			DeliveryTimeout: getEnvAsDuration("NOTIFY_DELIVERY_TIMEOUT", 5*time.Second),
		},
		Kiosk: KioskConfig{
			TokenTTL:    getEnvAsDuration("KIOSK_TOKEN_TTL", 30*time.Second),
			ScanTimeout: getEnvAsDuration("KIOSK_SCAN_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			Backend:        getEnv("SESSION_BACKEND", "redis"),
			TimeoutMinutes: getEnvAsInt("SESSION_TIMEOUT_MINUTES", 30),
			SweepInterval:  getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			TokenRetention: getEnvAsDuration("SESSION_TOKEN_RETENTION", time.Hour),
		},
		Attendance: AttendanceConfig{
			Timezone:         getEnv("ATTENDANCE_TIMEZONE", "UTC"),
			WorkdayStart:     getEnv("ATTENDANCE_WORKDAY_START", "09:00"),
			WorkdayEnd:       getEnv("ATTENDANCE_WORKDAY_END", "17:00"),
			LateGraceMinutes: getEnvAsInt("ATTENDANCE_LATE_GRACE_MINUTES", 15),
			DebounceSeconds:  getEnvAsInt("ATTENDANCE_DEBOUNCE_SECONDS", 60),
			MaxShiftHours:    getEnvAsInt("ATTENDANCE_MAX_SHIFT_HOURS", 16),
		},
		RateLimit: RateLimitConfig{
			ScanPerMinute:   getEnvAsInt("RATE_LIMIT_SCAN_PER_MINUTE", 60),
			ManualPerMinute: getEnvAsInt("RATE_LIMIT_MANUAL_PER_MINUTE", 10),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}

	if cfg.Kiosk.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid KIOSK_TOKEN_TTL: must be positive")
	}
	if cfg.Session.TimeoutMinutes <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TIMEOUT_MINUTES: must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the inactivity window after which a session is pruned.
func (s SessionConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
