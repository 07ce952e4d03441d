package config

import (
	"strings"
	"time"

	"resume-anonymizer/internal/domain"

	"github.com/spf13/viper"
)

const (
	defaultMaxFileSize     = 50 * 1024 * 1024 // 50MB
	defaultSessionCacheTTL = 30 * time.Minute
	defaultPIITimeout      = 60 * time.Second
	defaultEditorIdle      = 30 * time.Minute
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string
	MaxFileSize       int64
	LogLevel          string
	LogFormat         string
	SupabaseURL       string
	SupabaseKey       string
	StorageBucket     string
	RedisURL          string
	SessionCacheTTL   time.Duration
	PIIServiceURL     string
	PIIServiceTimeout time.Duration
	PublicBaseURL     string
	RateLimitRPM      int
	RateLimitBurst    int
	AllowedOrigins    []string
	EditorIdleTimeout time.Duration
	DevAuthToken      string
}

// NewConfig creates a new configuration instance from the environment with default values
func NewConfig() domain.Config {
	return load(newViper())
}

// NewConfigFromFile layers a YAML/JSON/TOML config file under the environment.
func NewConfigFromFile(path string) (domain.Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return load(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("max_file_size", defaultMaxFileSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("supabase_storage_bucket", "anonymizer-originals")
	v.SetDefault("session_cache_ttl", defaultSessionCacheTTL)
	v.SetDefault("pii_service_url", "http://localhost:8000/api/anonymizer")
	v.SetDefault("pii_service_timeout", defaultPIITimeout)
	v.SetDefault("public_base_url", "http://localhost:3000")
	v.SetDefault("rate_limit_rpm", 120)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("cors_allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("editor_idle_timeout", defaultEditorIdle)
	return v
}

func load(v *viper.Viper) *AppConfig {
	// Cloud Run (and many PaaS) provide the listening port via PORT.
	// Keep SERVER_PORT for local/dev compatibility.
	port := v.GetString("port")
	if port == "" {
		port = v.GetString("server_port")
	}

	return &AppConfig{
		ServerPort:        port,
		MaxFileSize:       getInt64OrDefault(v, "max_file_size", defaultMaxFileSize),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		SupabaseURL:       v.GetString("supabase_url"),
		SupabaseKey:       v.GetString("supabase_anon_key"),
		StorageBucket:     v.GetString("supabase_storage_bucket"),
		RedisURL:          v.GetString("redis_url"),
		SessionCacheTTL:   getDurationOrDefault(v, "session_cache_ttl", defaultSessionCacheTTL),
		PIIServiceURL:     strings.TrimRight(v.GetString("pii_service_url"), "/"),
		PIIServiceTimeout: getDurationOrDefault(v, "pii_service_timeout", defaultPIITimeout),
		PublicBaseURL:     strings.TrimRight(v.GetString("public_base_url"), "/"),
		RateLimitRPM:      v.GetInt("rate_limit_rpm"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),
		AllowedOrigins:    splitList(v.GetString("cors_allowed_origins")),
		EditorIdleTimeout: getDurationOrDefault(v, "editor_idle_timeout", defaultEditorIdle),
		DevAuthToken:      v.GetString("dev_auth_token"),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

func (c *AppConfig) GetLogFormat() string {
	return c.LogFormat
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetStorageBucket returns the bucket original uploads are stored in
func (c *AppConfig) GetStorageBucket() string {
	return c.StorageBucket
}

// GetRedisURL returns the Redis URL; empty disables the session cache
func (c *AppConfig) GetRedisURL() string {
	return c.RedisURL
}

func (c *AppConfig) GetSessionCacheTTL() time.Duration {
	return c.SessionCacheTTL
}

// GetPIIServiceURL returns the base URL of the PII detection service
func (c *AppConfig) GetPIIServiceURL() string {
	return c.PIIServiceURL
}

func (c *AppConfig) GetPIIServiceTimeout() time.Duration {
	return c.PIIServiceTimeout
}

// GetPublicBaseURL returns the frontend base URL share links point to
func (c *AppConfig) GetPublicBaseURL() string {
	return c.PublicBaseURL
}

func (c *AppConfig) GetRateLimitRPM() int {
	return c.RateLimitRPM
}

func (c *AppConfig) GetRateLimitBurst() int {
	return c.RateLimitBurst
}

func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// GetEditorIdleTimeout returns how long an unused editor stays open
func (c *AppConfig) GetEditorIdleTimeout() time.Duration {
	return c.EditorIdleTimeout
}

// GetDevAuthToken returns the bearer token accepted when Supabase is not configured
func (c *AppConfig) GetDevAuthToken() string {
	return c.DevAuthToken
}

// Helper functions for values that may be malformed in the environment
func getInt64OrDefault(v *viper.Viper, key string, defaultValue int64) int64 {
	if value := v.GetInt64(key); value > 0 {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return defaultValue
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
