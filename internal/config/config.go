package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// SchedulerEnabled starts the in-process tick trigger (default true). Set
	// SCHEDULER_ENABLED=false when an external trigger drives POST /v1/tick instead.
	SchedulerEnabled bool

	// TickBatchSize caps how many due schedules one tick will process (default 50).
	TickBatchSize int

	// FailureThreshold is the number of consecutive pipeline failures after which
	// a schedule is auto-disabled (default 5).
	FailureThreshold int

	// ScanEngineURL is the base URL of the external accessibility scan engine.
	ScanEngineURL string

	// ReportServiceURL is the base URL of the external report rendering/delivery service.
	ReportServiceURL string

	// PipelineTimeoutSeconds bounds one scan+delivery pipeline call (default 120).
	PipelineTimeoutSeconds int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string

	// CORSAllowedOrigins is a list of origins allowed for CORS.
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent.
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "a11ydb"),
		DBUser: getEnv("DB_USER", "a11yuser"),
		DBPass: getEnv("DB_PASS", "a11ypass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		TickBatchSize:    getEnvInt("TICK_BATCH_SIZE", 50),
		FailureThreshold: getEnvInt("FAILURE_THRESHOLD", 5),

		ScanEngineURL:          getEnv("SCAN_ENGINE_URL", "http://localhost:8090"),
		ReportServiceURL:       getEnv("REPORT_SERVICE_URL", "http://localhost:8091"),
		PipelineTimeoutSeconds: getEnvInt("PIPELINE_TIMEOUT_SECONDS", 120),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
