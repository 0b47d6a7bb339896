// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and driver loop.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDispatchInterval() time.Duration
	GetDispatchBatchSize() int
}

// ProviderConfig provides settings for the voice call provider gateway.
type ProviderConfig interface {
	GetProviderBaseURL() string
	GetProviderAPIKey() string
	GetProviderAssistantID() string
	GetProviderPhoneNumberID() string
	GetProviderTimeout() time.Duration
	GetProviderCallsPerSecond() float64
}

// WebhookConfig provides settings for inbound webhook validation.
type WebhookConfig interface {
	GetWebhookSecret() string
}

// RetryConfig provides the retry policy and reconciliation settings.
type RetryConfig interface {
	GetMaxRetryCount() int
	GetRetryIntervals() []time.Duration
	GetCallMaxDuration() time.Duration
	GetReconciliationInterval() time.Duration
}

// WhatsAppConfig provides settings for the WhatsApp fallback channel.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetWhatsAppEnabled() bool
	GetWhatsAppTemplate() string
}

// EmailConfig provides settings for the email fallback channel.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailSubject() string
}

// ImapConfig provides settings for the inbound email reply poller.
type ImapConfig interface {
	GetImapHost() string
	GetImapPort() int
	GetImapUser() string
	GetImapPassword() string
	GetImapFolder() string
	GetImapPollInterval() time.Duration
	IsImapEnabled() bool
}

// ArchiveConfig provides settings for the call report archive bucket.
type ArchiveConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketCallReports() string
	IsArchiveEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL   string
	MigrationsDir string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	DispatchInterval  time.Duration
	DispatchBatchSize int

	ProviderBaseURL        string
	ProviderAPIKey         string
	ProviderAssistantID    string
	ProviderPhoneNumberID  string
	ProviderTimeout        time.Duration
	ProviderCallsPerSecond float64
	WebhookSecret          string

	MaxRetryCount          int
	RetryIntervals         []time.Duration
	CallMaxDuration        time.Duration
	ReconciliationInterval time.Duration

	WhatsAppURL      string
	WhatsAppKey      string
	WhatsAppDeviceID string
	WhatsAppEnabled  bool
	WhatsAppTemplate string

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	EmailSubject     string

	ImapHost         string
	ImapPort         int
	ImapUser         string
	ImapPassword     string
	ImapFolder       string
	ImapPollInterval time.Duration

	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketCallReports string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetDispatchInterval() time.Duration { return c.DispatchInterval }
func (c *Config) GetDispatchBatchSize() int          { return c.DispatchBatchSize }

// ProviderConfig implementation
func (c *Config) GetProviderBaseURL() string          { return c.ProviderBaseURL }
func (c *Config) GetProviderAPIKey() string           { return c.ProviderAPIKey }
func (c *Config) GetProviderAssistantID() string      { return c.ProviderAssistantID }
func (c *Config) GetProviderPhoneNumberID() string    { return c.ProviderPhoneNumberID }
func (c *Config) GetProviderTimeout() time.Duration   { return c.ProviderTimeout }
func (c *Config) GetProviderCallsPerSecond() float64  { return c.ProviderCallsPerSecond }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// RetryConfig implementation
func (c *Config) GetMaxRetryCount() int                    { return c.MaxRetryCount }
func (c *Config) GetRetryIntervals() []time.Duration       { return c.RetryIntervals }
func (c *Config) GetCallMaxDuration() time.Duration        { return c.CallMaxDuration }
func (c *Config) GetReconciliationInterval() time.Duration { return c.ReconciliationInterval }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }
func (c *Config) GetWhatsAppEnabled() bool    { return c.WhatsAppEnabled && c.WhatsAppURL != "" }
func (c *Config) GetWhatsAppTemplate() string { return c.WhatsAppTemplate }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled && c.SMTPHost != "" }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailSubject() string     { return c.EmailSubject }

// ImapConfig implementation
func (c *Config) GetImapHost() string                  { return c.ImapHost }
func (c *Config) GetImapPort() int                     { return c.ImapPort }
func (c *Config) GetImapUser() string                  { return c.ImapUser }
func (c *Config) GetImapPassword() string              { return c.ImapPassword }
func (c *Config) GetImapFolder() string                { return c.ImapFolder }
func (c *Config) GetImapPollInterval() time.Duration   { return c.ImapPollInterval }
func (c *Config) IsImapEnabled() bool                  { return c.ImapHost != "" && c.ImapUser != "" }

// ArchiveConfig implementation
func (c *Config) GetMinIOEndpoint() string         { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string        { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string        { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool             { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketCallReports() string { return c.MinioBucketCallReports }
func (c *Config) IsArchiveEnabled() bool           { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	retryIntervals, err := parseIntervals(getEnv("RETRY_INTERVALS", "1h,4h,24h"))
	if err != nil {
		return nil, fmt.Errorf("RETRY_INTERVALS: %w", err)
	}

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "engagement"),
		AsynqConcurrency:  mustInt(getEnv("PARALLEL_CALL_LIMIT", "5")),
		DispatchInterval:  time.Duration(mustInt(getEnv("ORCHESTRATOR_INTERVAL_SECONDS", "15"))) * time.Second,
		DispatchBatchSize: mustInt(getEnv("ORCHESTRATOR_BATCH_SIZE", "50")),

		ProviderBaseURL:        getEnv("CALL_PROVIDER_URL", "https://api.vapi.ai"),
		ProviderAPIKey:         getEnv("CALL_PROVIDER_API_KEY", ""),
		ProviderAssistantID:    getEnv("CALL_ASSISTANT_ID", ""),
		ProviderPhoneNumberID:  getEnv("CALL_PHONE_NUMBER_ID", ""),
		ProviderTimeout:        mustDuration(getEnv("CALL_PROVIDER_TIMEOUT", "15s")),
		ProviderCallsPerSecond: mustFloat(getEnv("CALL_PROVIDER_RATE", "1")),
		WebhookSecret:          getEnv("WEBHOOK_SECRET", ""),

		MaxRetryCount:          mustInt(getEnv("MAX_RETRY_COUNT", "3")),
		RetryIntervals:         retryIntervals,
		CallMaxDuration:        mustDuration(getEnv("CALL_MAX_DURATION", "15m")),
		ReconciliationInterval: time.Duration(mustInt(getEnv("RECONCILIATION_INTERVAL_SECONDS", "300"))) * time.Second,

		WhatsAppURL:      getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:      getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID: getEnv("WHATSAPP_DEVICE_ID", ""),
		WhatsAppEnabled:  strings.EqualFold(getEnv("WHATSAPP_ENABLE_FALLBACK", "true"), "true"),
		WhatsAppTemplate: getEnv("WHATSAPP_TEMPLATE_FALLBACK", "Hi {name}, we tried calling you but could not reach you. Reply here and we will get back to you."),

		EmailEnabled:     strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Presales"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailSubject:     getEnv("EMAIL_SUBJECT", "Missed Call Follow-Up"),

		ImapHost:         getEnv("IMAP_HOST", ""),
		ImapPort:         mustInt(getEnv("IMAP_PORT", "993")),
		ImapUser:         getEnv("IMAP_USER", ""),
		ImapPassword:     getEnv("IMAP_PASSWORD", ""),
		ImapFolder:       getEnv("IMAP_FOLDER", "INBOX"),
		ImapPollInterval: time.Duration(mustInt(getEnv("IMAP_POLL_SECONDS", "60"))) * time.Second,

		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketCallReports: getEnv("MINIO_BUCKET_CALL_REPORTS", "call-reports"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxRetryCount < 1 {
		return nil, fmt.Errorf("MAX_RETRY_COUNT must be at least 1")
	}
	if len(cfg.RetryIntervals) == 0 {
		return nil, fmt.Errorf("RETRY_INTERVALS must not be empty")
	}
	if cfg.AsynqConcurrency < 1 {
		return nil, fmt.Errorf("PARALLEL_CALL_LIMIT must be at least 1")
	}
	if cfg.EmailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

// parseIntervals accepts a comma-separated list of Go durations
// ("1h,4h,24h") or, for compatibility with the source system's
// configuration, bare hour counts ("1,4,24").
func parseIntervals(value string) ([]time.Duration, error) {
	parts := splitCSV(value)
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		if d, err := time.ParseDuration(part); err == nil {
			out = append(out, d)
			continue
		}
		hours, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q", part)
		}
		out = append(out, time.Duration(hours*float64(time.Hour)))
	}
	return out, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
