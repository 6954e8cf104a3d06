package config

import (
	"os"
	"strconv"
	"strings"
)

const bytesPerMB = 1024 * 1024

// Config centralizes runtime settings for the API.
type Config struct {
	Port      string
	APIPrefix string

	AllowedOrigins []string

	UploadDir         string
	MaxFileSizeMB     int
	AllowedExtensions []string

	LogLevel  string
	LogFormat string

	DatabaseURL         string
	DatabaseAutoMigrate bool

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AuditStream     string
	AuditMaxEntries int

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsEnabled bool
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8000"),
		APIPrefix: normalizePrefix(getEnv("API_PREFIX", "/api/v1")),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://localhost:4173",
		}),

		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		MaxFileSizeMB:     getEnvInt("MAX_FILE_SIZE_MB", 10),
		AllowedExtensions: NormalizeExtensions(getEnvList("ALLOWED_EXTENSIONS", []string{".pdf", ".docx", ".jpg", ".jpeg", ".png"})),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseAutoMigrate: getEnvBool("DATABASE_AUTO_MIGRATE", true),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		AuditStream:     getEnv("AUDIT_STREAM", "factory_audit"),
		AuditMaxEntries: getEnvInt("AUDIT_MAX_ENTRIES", 1000),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Prefix:          getEnv("S3_PREFIX", "uploads"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// MaxFileSizeBytes converts the configured ceiling from MiB to bytes.
func (c Config) MaxFileSizeBytes() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 10 * bytesPerMB
	}
	return int64(c.MaxFileSizeMB) * bytesPerMB
}

// NormalizeExtensions lower-cases entries, adds the leading dot and drops
// duplicates while keeping the configured order.
func NormalizeExtensions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, raw := range values {
		ext := strings.ToLower(strings.TrimSpace(raw))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		result = append(result, ext)
	}
	return result
}

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	result := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
