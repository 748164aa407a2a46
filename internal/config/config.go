package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Mode selects how the analysis pipeline behaves. It is always chosen by
// configuration, never by whether an error occurred.
type Mode string

const (
	// ModeEphemeral analyzes documents and hands the tasks back to the caller.
	ModeEphemeral Mode = "ephemeral"
	// ModePersistent requires a session and stores files, documents and tasks.
	ModePersistent Mode = "persistent"
	// ModeDemo validates input and returns flagged demo data without calling the model.
	ModeDemo Mode = "demo"
)

// Config holds all configuration for the CareSync functions.
type Config struct {
	Mode           Mode   `yaml:"mode"             env:"ANALYSIS_MODE"           env-default:"ephemeral"`
	ProjectID      string `yaml:"project_id"       env:"GOOGLE_CLOUD_PROJECT_ID"`
	VertexAIRegion string `yaml:"vertex_ai_region" env:"VERTEX_AI_REGION"        env-default:"us-central1"`
	AnalyzerModel  string `yaml:"analyzer_model"   env:"ANALYZER_MODEL"          env-default:"gemini-1.5-pro"`
	ChatModel      string `yaml:"chat_model"       env:"CHAT_MODEL"              env-default:"gemini-1.5-pro"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"        env-default:"20971520"`
	HTTPAddr       string `yaml:"http_addr"        env:"HTTP_ADDR"               env-default:":8080"`

	// ShutdownTimeout bounds the standalone server's graceful drain.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`

	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
}

type StorageConfig struct {
	DocumentsBucket     string `yaml:"documents_bucket"     env:"DOCUMENTS_BUCKET"`
	DocumentsCollection string `yaml:"documents_collection" env:"FIRESTORE_DOCUMENTS_COLLECTION" env-default:"documents"`
	TasksCollection     string `yaml:"tasks_collection"     env:"FIRESTORE_TASKS_COLLECTION"     env-default:"tasks"`
	FirestoreDatabase   string `yaml:"firestore_database"   env:"FIRESTORE_DATABASE_ID"          env-default:"(default)"`
}

type AuthConfig struct {
	// JWTSecret verifies the HS256 access tokens issued by the managed auth provider.
	JWTSecret string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"SUPABASE_JWT_ISSUER"`
}

// WorkflowConfig points at the Cloud Workflow that fans out task notifications.
// An empty WorkflowID disables the hand-off.
type WorkflowConfig struct {
	WorkflowID string `yaml:"workflow_id" env:"WORKFLOW_ID"`
	Location   string `yaml:"location"    env:"WORKFLOW_LOCATION" env-default:"us-central1"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from the environment, or from the YAML file named by
// CONFIG_PATH when it is set (environment variables still take precedence).
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings each mode depends on. A missing model provider
// project is fatal outside demo mode.
func (c *Config) Validate() error {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	switch c.Mode {
	case ModeEphemeral, ModePersistent, ModeDemo:
	default:
		return fmt.Errorf("ANALYSIS_MODE must be one of ephemeral, persistent, demo (got %q)", c.Mode)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0 (got %d)", c.MaxUploadBytes)
	}

	if c.Mode == ModeDemo {
		return nil
	}
	if c.ProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID environment variable must be set")
	}

	if c.Mode == ModePersistent {
		if c.Storage.DocumentsBucket == "" {
			return fmt.Errorf("DOCUMENTS_BUCKET must be set in persistent mode")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("SUPABASE_JWT_SECRET must be set in persistent mode")
		}
	}
	return nil
}

// Persistent reports whether results are stored server-side.
func (c *Config) Persistent() bool { return c.Mode == ModePersistent }
