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

// RedisConfig provides Redis connection settings for jobs and quota state.
type RedisConfig interface {
	GetRedisURL() string
}

// SchedulerConfig provides settings for the asynq job scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// JWTConfig provides JWT validation settings for reviewer middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// JobConfig provides settings for authenticated job-trigger endpoints.
type JobConfig interface {
	GetJobSharedSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// ChannelConfig provides settings for the outreach channel provider.
type ChannelConfig interface {
	GetChannelAPIURL() string
	GetChannelAPIKey() string
	GetChannelWebhookSecret() string
	GetChannelTimeout() time.Duration
}

// AIConfig provides settings for the text-generation collaborator.
type AIConfig interface {
	GetMoonshotAPIKey() string
	GetMoonshotBaseURL() string
	GetMoonshotModel() string
}

// SMTPConfig provides settings for the email escalation channel.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// PollConfig provides the connection-poll tuning knobs.
type PollConfig interface {
	GetPollJitterMax() time.Duration
	GetDeclineAfter() time.Duration
}

// OutreachConfig provides the lifecycle tuning knobs.
type OutreachConfig interface {
	GetMaxTouches() int
	GetBatchSize() int
	GetDailySendLimit() int
	GetSendAttempts() int
	GetSendDelayMin() time.Duration
	GetSendDelayMax() time.Duration
	GetEscalationTouchThreshold() int
	GetAutoApproveConfidence() float64
	GetPollJitterMax() time.Duration
	GetDeclineAfter() time.Duration
	GetCycleBudget() time.Duration
	GetSendHourStart() int
	GetSendHourEnd() int
	GetScheduleLocation() *time.Location
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	JWTAccessSecret          string
	JobSharedSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	ChannelAPIURL            string
	ChannelAPIKey            string
	ChannelWebhookSecret     string
	ChannelTimeout           time.Duration
	MoonshotAPIKey           string
	MoonshotBaseURL          string
	MoonshotModel            string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	EmailEnabled             bool
	MaxTouches               int
	BatchSize                int
	DailySendLimit           int
	SendAttempts             int
	SendDelayMin             time.Duration
	SendDelayMax             time.Duration
	EscalationTouchThreshold int
	AutoApproveConfidence    float64
	PollJitterMax            time.Duration
	DeclineAfter             time.Duration
	CycleBudget              time.Duration
	SendHourStart            int
	SendHourEnd              int
	ScheduleLocation         *time.Location
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string { return c.RedisURL }

// SchedulerConfig implementation
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// JobConfig implementation
func (c *Config) GetJobSharedSecret() string { return c.JobSharedSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// ChannelConfig implementation
func (c *Config) GetChannelAPIURL() string         { return c.ChannelAPIURL }
func (c *Config) GetChannelAPIKey() string         { return c.ChannelAPIKey }
func (c *Config) GetChannelWebhookSecret() string  { return c.ChannelWebhookSecret }
func (c *Config) GetChannelTimeout() time.Duration { return c.ChannelTimeout }

// AIConfig implementation
func (c *Config) GetMoonshotAPIKey() string  { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotBaseURL() string { return c.MoonshotBaseURL }
func (c *Config) GetMoonshotModel() string   { return c.MoonshotModel }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled }

// OutreachConfig implementation
func (c *Config) GetMaxTouches() int                   { return c.MaxTouches }
func (c *Config) GetBatchSize() int                    { return c.BatchSize }
func (c *Config) GetDailySendLimit() int               { return c.DailySendLimit }
func (c *Config) GetSendAttempts() int                 { return c.SendAttempts }
func (c *Config) GetSendDelayMin() time.Duration       { return c.SendDelayMin }
func (c *Config) GetSendDelayMax() time.Duration       { return c.SendDelayMax }
func (c *Config) GetEscalationTouchThreshold() int     { return c.EscalationTouchThreshold }
func (c *Config) GetAutoApproveConfidence() float64    { return c.AutoApproveConfidence }
func (c *Config) GetPollJitterMax() time.Duration      { return c.PollJitterMax }
func (c *Config) GetDeclineAfter() time.Duration       { return c.DeclineAfter }
func (c *Config) GetCycleBudget() time.Duration        { return c.CycleBudget }
func (c *Config) GetSendHourStart() int                { return c.SendHourStart }
func (c *Config) GetSendHourEnd() int                  { return c.SendHourEnd }
func (c *Config) GetScheduleLocation() *time.Location  { return c.ScheduleLocation }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	loc, err := time.LoadLocation(getEnv("SCHEDULE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE is invalid: %w", err)
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		JobSharedSecret:          getEnv("JOB_SHARED_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		ChannelAPIURL:            getEnv("CHANNEL_API_URL", ""),
		ChannelAPIKey:            getEnv("CHANNEL_API_KEY", ""),
		ChannelWebhookSecret:     getEnv("CHANNEL_WEBHOOK_SECRET", ""),
		ChannelTimeout:           mustDuration(getEnv("CHANNEL_TIMEOUT", "15s")),
		MoonshotAPIKey:           getEnv("MOONSHOT_API_KEY", ""),
		MoonshotBaseURL:          getEnv("MOONSHOT_BASE_URL", "https://api.moonshot.ai/v1"),
		MoonshotModel:            getEnv("MOONSHOT_MODEL", "kimi-k2-0711-preview"),
		SMTPHost:                 smtpHost,
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailEnabled:             emailEnabled && smtpHost != "",
		MaxTouches:               mustInt(getEnv("OUTREACH_MAX_TOUCHES", "6")),
		BatchSize:                mustInt(getEnv("OUTREACH_BATCH_SIZE", "20")),
		DailySendLimit:           mustInt(getEnv("OUTREACH_DAILY_SEND_LIMIT", "20")),
		SendAttempts:             mustInt(getEnv("OUTREACH_SEND_ATTEMPTS", "3")),
		SendDelayMin:             mustDuration(getEnv("OUTREACH_SEND_DELAY_MIN", "3s")),
		SendDelayMax:             mustDuration(getEnv("OUTREACH_SEND_DELAY_MAX", "5s")),
		EscalationTouchThreshold: mustInt(getEnv("OUTREACH_ESCALATION_TOUCH", "3")),
		AutoApproveConfidence:    mustFloat(getEnv("HITL_AUTO_APPROVE_CONFIDENCE", "0")),
		PollJitterMax:            mustDuration(getEnv("POLL_JITTER_MAX", "8s")),
		DeclineAfter:             mustDuration(getEnv("POLL_DECLINE_AFTER", "24h")),
		CycleBudget:              mustDuration(getEnv("OUTREACH_CYCLE_BUDGET", "4m")),
		SendHourStart:            mustInt(getEnv("SEND_HOUR_START", "9")),
		SendHourEnd:              mustInt(getEnv("SEND_HOUR_END", "17")),
		ScheduleLocation:         loc,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.JobSharedSecret == "" {
		return nil, fmt.Errorf("JOB_SHARED_SECRET is required")
	}
	if cfg.ChannelWebhookSecret == "" {
		return nil, fmt.Errorf("CHANNEL_WEBHOOK_SECRET is required")
	}
	if emailEnabled && cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.SendDelayMax < cfg.SendDelayMin {
		return nil, fmt.Errorf("OUTREACH_SEND_DELAY_MAX must not be below OUTREACH_SEND_DELAY_MIN")
	}
	if cfg.SendHourEnd <= cfg.SendHourStart {
		return nil, fmt.Errorf("SEND_HOUR_END must be after SEND_HOUR_START")
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
