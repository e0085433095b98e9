package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env            string
	LogLevel       string
	LogFormat      string
	HTTPAddr       string
	AdminJWTSecret string
	Timezone       string

	// Persistence
	KVBackend       string
	BadgerDir       string
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	DatabaseURL     string
	KVDynamoDBTable string

	// Remote classification
	ClassifierProvider         string
	ClassifierFallbackProvider string
	ClassifierTimeout          time.Duration
	ClassifierRetries          int
	ClassifierCacheTTL         time.Duration
	ClassifierConcurrency      int
	BedrockModelID             string
	GeminiAPIKey               string
	GeminiModelID              string
	OpenAIAPIKey               string
	OpenAIBaseURL              string
	OpenAIModel                string

	// Transport and outbound
	MonitoredGroups        []string
	IncludeDirectChats     bool
	WhatsAppStoreDSN       string
	OperatorConversationID string
	AckCooldown            time.Duration
	GreetingDailyCap       int
	HandlerClaimTTL        time.Duration
	SendMaxRetries         int
	SendRetryDelay         time.Duration
	BatchFlushInterval     time.Duration

	// Notifications and fan-out
	EmailProvider      string
	OperatorEmail      string
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	SESFromEmail       string
	LeadEventsQueueURL string

	// Maintenance
	MaintenanceInterval time.Duration
	BackupBucket        string
	BackupInterval      time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		Timezone:       getEnv("TIMEZONE", "Asia/Kolkata"),

		KVBackend:       strings.ToLower(strings.TrimSpace(getEnv("KV_BACKEND", "badger"))),
		BadgerDir:       getEnv("BADGER_DIR", "data/badger"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		KVDynamoDBTable: getEnv("KV_DYNAMODB_TABLE", "leadtriage_kv"),

		ClassifierProvider:         strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER_PROVIDER", "none"))),
		ClassifierFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER_FALLBACK_PROVIDER", ""))),
		ClassifierTimeout:          getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		ClassifierRetries:          getEnvAsInt("CLASSIFIER_RETRIES", 1),
		ClassifierCacheTTL:         getEnvAsDuration("CLASSIFIER_CACHE_TTL", 5*time.Minute),
		ClassifierConcurrency:      getEnvAsInt("CLASSIFIER_CONCURRENCY", 4),
		BedrockModelID:             getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:               getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:              getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:              getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		MonitoredGroups:        getEnvAsList("MONITORED_GROUPS"),
		IncludeDirectChats:     getEnvAsBool("INCLUDE_DIRECT_CHATS", false),
		WhatsAppStoreDSN:       getEnv("WHATSAPP_STORE_DSN", "file:data/whatsapp.db?_foreign_keys=on"),
		OperatorConversationID: getEnv("OPERATOR_CONVERSATION_ID", ""),
		AckCooldown:            getEnvAsDuration("ACK_COOLDOWN", 60*time.Minute),
		GreetingDailyCap:       getEnvAsInt("GREETING_DAILY_CAP", 2),
		HandlerClaimTTL:        getEnvAsDuration("HANDLER_CLAIM_TTL", 24*time.Hour),
		SendMaxRetries:         getEnvAsInt("SEND_MAX_RETRIES", 2),
		SendRetryDelay:         getEnvAsDuration("SEND_RETRY_DELAY", 2*time.Second),
		BatchFlushInterval:     getEnvAsDuration("BATCH_FLUSH_INTERVAL", 2*time.Second),

		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		OperatorEmail:      getEnv("OPERATOR_EMAIL", ""),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "Lead Triage"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		LeadEventsQueueURL: getEnv("LEAD_EVENTS_QUEUE_URL", ""),

		MaintenanceInterval: getEnvAsDuration("MAINTENANCE_INTERVAL", time.Minute),
		BackupBucket:        getEnv("BACKUP_BUCKET", ""),
		BackupInterval:      getEnvAsDuration("BACKUP_INTERVAL", 6*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
