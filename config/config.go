package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port    string
	BaseURL string // Public origin used when building absolute links, empty for relative links

	FFmpegPath     string
	FFprobePath    string
	VideoCodec     string // "auto", "copy" or an ffmpeg encoder name
	AudioBitrate   string // e.g., "128k"
	HLSSegmentTime string
	OutputDir      string // Root directory holding one subdirectory per job
	KeepSource     bool   // Keep the raw downloaded file next to the HLS output
	JobTTL         time.Duration
	JobTimeout     time.Duration
	MaxDownloadMB  int64

	// Telegram Bot API
	BotToken        string
	TargetChat      string // Chat the bot forwards posts into: numeric id or @username
	BotAPIEndpoint  string // Format string with token and method placeholders
	BotFileEndpoint string // Format string with token and file path placeholders

	// Telegram user session (MTProto)
	TelegramAppID   int
	TelegramAppHash string
	SessionPath     string

	// Database
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	StreamSecret      string // HMAC key for signed stream links; empty disables signing
	AdminPasswordHash string // bcrypt hash guarding admin endpoints
	RateLimitPerMin   int
	TrustedProxies    []string // IPs or CIDRs whose X-Forwarded-For is believed

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var list []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			list = append(list, p)
		}
	}
	return list
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current process environment only.
func FromEnv() *Config {
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	ffprobeDefault := strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)

	return &Config{
		Port:    getEnv("PORT", "8080"),
		BaseURL: strings.TrimRight(getEnv("BASE_URL", ""), "/"),

		FFmpegPath:     ffmpegPath,
		FFprobePath:    getEnv("FFPROBE_PATH", ffprobeDefault),
		VideoCodec:     getEnv("VIDEO_CODEC", "auto"),
		AudioBitrate:   getEnv("AUDIO_BITRATE", "128k"),
		HLSSegmentTime: getEnv("HLS_SEGMENT_TIME", "6"),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join("static", "streams")),
		KeepSource:     getEnvBool("KEEP_SOURCE", false),
		JobTTL:         getEnvDuration("JOB_TTL", time.Hour),
		JobTimeout:     getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		MaxDownloadMB:  int64(getEnvInt("MAX_DOWNLOAD_MB", 2000)),

		BotToken:        os.Getenv("BOT_TOKEN"),
		TargetChat:      os.Getenv("TARGET_CHAT"),
		BotAPIEndpoint:  getEnv("BOT_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
		BotFileEndpoint: getEnv("BOT_FILE_ENDPOINT", "https://api.telegram.org/file/bot%s/%s"),

		TelegramAppID:   getEnvInt("TELEGRAM_APP_ID", 0),
		TelegramAppHash: os.Getenv("TELEGRAM_APP_HASH"),
		SessionPath:     getEnv("TELEGRAM_SESSION_PATH", filepath.Join("data", "session.json")),

		DBEnabled:  getEnvBool("DB_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "tgstream"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "tgstream"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		StreamSecret:      os.Getenv("STREAM_SECRET"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 10),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

// SessionEnabled reports whether an MTProto user session is configured.
func (c *Config) SessionEnabled() bool {
	return c.TelegramAppID != 0 && c.TelegramAppHash != ""
}

// MaxDownloadBytes returns the download size cap in bytes.
func (c *Config) MaxDownloadBytes() int64 {
	if c.MaxDownloadMB <= 0 {
		return 0
	}
	return c.MaxDownloadMB << 20
}
