package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	// Key material for verifying identity-provider ID tokens. Either the
	// shared HMAC secret or a PEM-encoded RSA/ECDSA public key.
	JWTSecret     string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`

	// Identity provider admin API, used for account deletion.
	IdentityAdminURL string `envconfig:"IDENTITY_ADMIN_URL"`
	IdentityAdminKey string `envconfig:"IDENTITY_ADMIN_KEY"`

	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Speech-to-text provider settings
	SpeechAPIBaseURL        string `envconfig:"SPEECH_API_BASE_URL" required:"true"`
	SpeechAPIKey            string `envconfig:"SPEECH_API_KEY"`
	SpeechRequestTimeoutSec int    `envconfig:"SPEECH_REQUEST_TIMEOUT_SEC" default:"300"`

	// LLM provider settings
	LLMAPIBaseURL        string `envconfig:"LLM_API_BASE_URL" required:"true"`
	LLMAPIKey            string `envconfig:"LLM_API_KEY"`
	LLMModel             string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMRequestTimeoutSec int    `envconfig:"LLM_REQUEST_TIMEOUT_SEC" default:"120"`

	// Optional GCP integration. When GCPProjectID is set, missing provider API
	// keys are resolved from Secret Manager and pipeline-completion events are
	// published to Pub/Sub.
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	EventTopic         string `envconfig:"EVENT_TOPIC" default:"voiceframe-events"`
	SpeechAPIKeySecret string `envconfig:"SPEECH_API_KEY_SECRET" default:"voiceframe-speech-api-key"`
	LLMAPIKeySecret    string `envconfig:"LLM_API_KEY_SECRET" default:"voiceframe-llm-api-key"`

	// Storage cleanup worker settings
	CleanupQueueName           string `envconfig:"CLEANUP_QUEUE_NAME" default:"storage_cleanup"`
	CleanupDeadLetterQueueName string `envconfig:"CLEANUP_DEAD_LETTER_QUEUE_NAME" default:"storage_cleanup_dlq"`
	CleanupPollTimeoutSec      int    `envconfig:"CLEANUP_POLL_TIMEOUT_SEC" default:"30"`
	CleanupPollMaxMsg          int    `envconfig:"CLEANUP_POLL_MAX_MSG" default:"1"`
	CleanupMaxRetries          int    `envconfig:"CLEANUP_MAX_RETRIES" default:"5"`
	CleanupBackoffInitialSec   int    `envconfig:"CLEANUP_BACKOFF_INITIAL_SEC" default:"1"`
	CleanupBackoffMaxSec       int    `envconfig:"CLEANUP_BACKOFF_MAX_SEC" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
