package domain

import "time"

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetLogFormat() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetStorageBucket() string
	GetRedisURL() string
	GetSessionCacheTTL() time.Duration
	GetPIIServiceURL() string
	GetPIIServiceTimeout() time.Duration
	GetPublicBaseURL() string
	GetRateLimitRPM() int
	GetRateLimitBurst() int
	GetAllowedOrigins() []string
	GetEditorIdleTimeout() time.Duration
	GetDevAuthToken() string
}
