package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the subrelay server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Pipeline   PipelineConfig
	Fetch      FetchConfig
	Extract    ExtractConfig
	Transcribe TranscribeConfig
	Translate  TranslateConfig
	Merge      MergeConfig
	Publish    PublishConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig enables the Postgres mirror of the job slot when URL is set.
type DatabaseConfig struct {
	URL             string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables submit rate limiting and the status key when URL is set.
type RedisConfig struct {
	URL             string
	SubmitRateLimit int
	StatusTTL       time.Duration
}

type PipelineConfig struct {
	WorkDir            string
	TargetLanguage     string
	DefaultTitle       string
	DefaultDescription string
	DefaultTags        []string
}

type FetchConfig struct {
	Binary  string
	Format  string
	Timeout time.Duration
}

type ExtractConfig struct {
	Binary  string
	Timeout time.Duration
}

type TranscribeConfig struct {
	Binary   string
	Model    string
	Language string
	Timeout  time.Duration
}

type TranslateConfig struct {
	BaseURL        string
	APIKey         string
	TargetLanguage string
	BatchSize      int
	Timeout        time.Duration
}

type MergeConfig struct {
	Timeout time.Duration
}

type PublishConfig struct {
	Target  string
	Timeout time.Duration
	S3      S3Config
	Minio   MinioConfig
	Webhook WebhookConfig
}

type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	KeyPrefix    string
}

type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	KeyPrefix  string
	LinkExpiry time.Duration
}

type WebhookConfig struct {
	URL   string
	Token string
}

var validPublishTargets = map[string]bool{
	"none":    true,
	"s3":      true,
	"minio":   true,
	"webhook": true,
}

const defaultFetchFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	target := envString("TARGET_LANGUAGE", "zh-CN")
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("SUBRELAY_PORT", 8080),
			Env:             envString("SUBRELAY_ENV", "development"),
			CORSOrigins:     envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:             os.Getenv("REDIS_URL"),
			SubmitRateLimit: envInt("SUBMIT_RATE_LIMIT", 10),
			StatusTTL:       envDuration("REDIS_STATUS_TTL", 24*time.Hour),
		},
		Pipeline: PipelineConfig{
			WorkDir:            envString("WORK_DIR", "./work"),
			TargetLanguage:     target,
			DefaultTitle:       envString("DEFAULT_VIDEO_TITLE", "从YouTube转载的视频"),
			DefaultDescription: envString("DEFAULT_VIDEO_DESCRIPTION", "这是一个从YouTube转载并添加了双语字幕的视频。"),
			DefaultTags:        envList("DEFAULT_VIDEO_TAGS", []string{"转载", "双语字幕", "YouTube"}),
		},
		Fetch: FetchConfig{
			Binary:  envString("YTDLP_PATH", "yt-dlp"),
			Format:  envString("YTDLP_FORMAT", defaultFetchFormat),
			Timeout: envDuration("FETCH_TIMEOUT", 30*time.Minute),
		},
		Extract: ExtractConfig{
			Binary:  envString("FFMPEG_PATH", "ffmpeg"),
			Timeout: envDuration("EXTRACT_TIMEOUT", 10*time.Minute),
		},
		Transcribe: TranscribeConfig{
			Binary:   envString("WHISPER_PATH", "whisper-cli"),
			Model:    os.Getenv("WHISPER_MODEL"),
			Language: envString("WHISPER_LANGUAGE", "auto"),
			Timeout:  envDuration("TRANSCRIBE_TIMEOUT", 60*time.Minute),
		},
		Translate: TranslateConfig{
			BaseURL:        envString("TRANSLATE_BASE_URL", "https://translation.googleapis.com"),
			APIKey:         os.Getenv("TRANSLATE_API_KEY"),
			TargetLanguage: target,
			BatchSize:      envInt("TRANSLATE_BATCH_SIZE", 64),
			Timeout:        envDuration("TRANSLATE_TIMEOUT", 10*time.Minute),
		},
		Merge: MergeConfig{
			Timeout: envDuration("MERGE_TIMEOUT", time.Minute),
		},
		Publish: PublishConfig{
			Target:  envString("PUBLISH_TARGET", "none"),
			Timeout: envDuration("PUBLISH_TIMEOUT", 30*time.Minute),
			S3: S3Config{
				Endpoint:     os.Getenv("S3_ENDPOINT"),
				Region:       envString("S3_REGION", "us-east-1"),
				Bucket:       os.Getenv("S3_BUCKET"),
				AccessKey:    os.Getenv("S3_ACCESS_KEY"),
				SecretKey:    os.Getenv("S3_SECRET_KEY"),
				UsePathStyle: envBool("S3_USE_PATH_STYLE", false),
				KeyPrefix:    envString("S3_KEY_PREFIX", "subrelay"),
			},
			Minio: MinioConfig{
				Endpoint:   os.Getenv("MINIO_ENDPOINT"),
				AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
				SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
				Bucket:     os.Getenv("MINIO_BUCKET"),
				UseSSL:     envBool("MINIO_USE_SSL", false),
				KeyPrefix:  envString("MINIO_KEY_PREFIX", "subrelay"),
				LinkExpiry: envDuration("MINIO_LINK_EXPIRY", 7*24*time.Hour),
			},
			Webhook: WebhookConfig{
				URL:   os.Getenv("PUBLISH_WEBHOOK_URL"),
				Token: os.Getenv("PUBLISH_WEBHOOK_TOKEN"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SUBRELAY_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Transcribe.Model == "" {
		return fmt.Errorf("WHISPER_MODEL is required")
	}

	if c.Translate.APIKey == "" {
		return fmt.Errorf("TRANSLATE_API_KEY is required")
	}
	if !isHTTPURL(c.Translate.BaseURL) {
		return fmt.Errorf("TRANSLATE_BASE_URL must start with http:// or https://, got %q", c.Translate.BaseURL)
	}
	if c.Translate.BatchSize <= 0 {
		return fmt.Errorf("TRANSLATE_BATCH_SIZE must be positive, got %d", c.Translate.BatchSize)
	}
	if c.Pipeline.TargetLanguage == "" {
		return fmt.Errorf("TARGET_LANGUAGE must not be empty")
	}

	timeouts := map[string]time.Duration{
		"FETCH_TIMEOUT":      c.Fetch.Timeout,
		"EXTRACT_TIMEOUT":    c.Extract.Timeout,
		"TRANSCRIBE_TIMEOUT": c.Transcribe.Timeout,
		"TRANSLATE_TIMEOUT":  c.Translate.Timeout,
		"MERGE_TIMEOUT":      c.Merge.Timeout,
		"PUBLISH_TIMEOUT":    c.Publish.Timeout,
	}
	for key, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}

	if !validPublishTargets[c.Publish.Target] {
		return fmt.Errorf("PUBLISH_TARGET must be one of none, s3, minio, webhook; got %q", c.Publish.Target)
	}

	switch c.Publish.Target {
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when PUBLISH_TARGET is s3")
		}
		if c.Publish.S3.AccessKey == "" || c.Publish.S3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when PUBLISH_TARGET is s3")
		}
		if c.Publish.S3.Endpoint != "" && !isHTTPURL(c.Publish.S3.Endpoint) {
			return fmt.Errorf("S3_ENDPOINT must start with http:// or https://, got %q", c.Publish.S3.Endpoint)
		}
	case "minio":
		if c.Publish.Minio.Endpoint == "" || c.Publish.Minio.Bucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required when PUBLISH_TARGET is minio")
		}
		if c.Publish.Minio.AccessKey == "" || c.Publish.Minio.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when PUBLISH_TARGET is minio")
		}
	case "webhook":
		if !isHTTPURL(c.Publish.Webhook.URL) {
			return fmt.Errorf("PUBLISH_WEBHOOK_URL must start with http:// or https://, got %q", c.Publish.Webhook.URL)
		}
	}

	if c.Redis.URL != "" && c.Redis.SubmitRateLimit <= 0 {
		return fmt.Errorf("SUBMIT_RATE_LIMIT must be positive, got %d", c.Redis.SubmitRateLimit)
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
