package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Interview Coach environment variables.
const EnvPrefix = "INTERVIEW_COACH_"

const (
	TransportRelay    = "relay"
	TransportDeepgram = "deepgram"
)

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LLMConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type SessionConfig struct {
	Transport   string `yaml:"transport"`
	AssistantID string `yaml:"assistant_id"`
	WorkflowID  string `yaml:"workflow_id"`
	IdleTimeout string `yaml:"idle_timeout"`
}

type DeepgramConfig struct {
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	// RecordDir keeps WAV copies of candidate audio when set.
	RecordDir  string `yaml:"record_dir"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type GDriveConfig struct {
	FolderID        string `yaml:"folder_id"`
	CredentialsFile string `yaml:"credentials_file"`
	BackupSchedule  string `yaml:"backup_schedule"`
}

// Config holds all application configuration. Secrets (API keys, webhook
// URLs) are loaded exclusively from environment variables and never appear
// in the config file.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	StaticDir  string          `yaml:"static_dir"`
	ReportDir  string          `yaml:"report_dir"`
	Store      StoreConfig     `yaml:"store"`
	LLM        LLMConfig       `yaml:"llm"`
	Session    SessionConfig   `yaml:"session"`
	Deepgram   DeepgramConfig  `yaml:"deepgram"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	GDrive     GDriveConfig    `yaml:"gdrive"`

	// Secrets, env vars only.
	LLMAPIKey       string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
	SlackWebhookURL string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr: ":8080",
		ReportDir:  "data/reports",
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "data/interview-coach.db",
		},
		LLM: LLMConfig{
			Model: "gemini/gemini-2.0-flash-001",
		},
		Session: SessionConfig{
			Transport:   TransportRelay,
			IdleTimeout: "30s",
		},
		Deepgram: DeepgramConfig{
			Model:      "nova-2",
			Language:   "en-US",
			SampleRate: 16000,
		},
		RateLimit: RateLimitConfig{PerMinute: 10},
		GDrive: GDriveConfig{
			CredentialsFile: "./service-account.json",
			BackupSchedule:  "@daily",
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedIdleTimeout returns Session.IdleTimeout as a time.Duration,
// falling back to 30s if the value is invalid.
func (c *Config) ParsedIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GDriveEnabled reports whether report export and backups should run.
func (c *Config) GDriveEnabled() bool {
	return c.GDrive.FolderID != ""
}

func applyEnvOverrides(cfg *Config) {
	stringVars := map[string]*string{
		"LISTEN_ADDR":             &cfg.ListenAddr,
		"STATIC_DIR":              &cfg.StaticDir,
		"REPORT_DIR":              &cfg.ReportDir,
		"STORE_DRIVER":            &cfg.Store.Driver,
		"STORE_DSN":               &cfg.Store.DSN,
		"LLM_MODEL":               &cfg.LLM.Model,
		"LLM_BASE_URL":            &cfg.LLM.BaseURL,
		"SESSION_TRANSPORT":       &cfg.Session.Transport,
		"SESSION_ASSISTANT_ID":    &cfg.Session.AssistantID,
		"SESSION_WORKFLOW_ID":     &cfg.Session.WorkflowID,
		"SESSION_IDLE_TIMEOUT":    &cfg.Session.IdleTimeout,
		"DEEPGRAM_MODEL":          &cfg.Deepgram.Model,
		"DEEPGRAM_LANGUAGE":       &cfg.Deepgram.Language,
		"DEEPGRAM_RECORD_DIR":     &cfg.Deepgram.RecordDir,
		"GDRIVE_FOLDER_ID":        &cfg.GDrive.FolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GDrive.CredentialsFile,
		"GDRIVE_BACKUP_SCHEDULE":  &cfg.GDrive.BackupSchedule,
	}
	for key, field := range stringVars {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*field = v
		}
	}

	intVars := map[string]*int{
		"DEEPGRAM_SAMPLE_RATE":  &cfg.Deepgram.SampleRate,
		"RATE_LIMIT_PER_MINUTE": &cfg.RateLimit.PerMinute,
	}
	for key, field := range intVars {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*field = n
			}
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.LLMAPIKey = os.Getenv(EnvPrefix + "LLM_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.SlackWebhookURL = os.Getenv(EnvPrefix + "SLACK_WEBHOOK_URL")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.LLMAPIKey == "" {
		warnings = append(warnings, "LLM API key not configured. Feedback and question generation are disabled. Set "+EnvPrefix+"LLM_API_KEY.")
	}
	if parts := strings.SplitN(cfg.LLM.Model, "/", 2); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		warnings = append(warnings, fmt.Sprintf("Invalid llm.model %q. Expected provider/model, e.g. gemini/gemini-2.0-flash-001.", cfg.LLM.Model))
	}

	switch cfg.Session.Transport {
	case TransportRelay:
		if cfg.Session.AssistantID == "" {
			warnings = append(warnings, "session.assistant_id not configured. The voice agent cannot run mock interviews.")
		}
		if cfg.Session.WorkflowID == "" {
			warnings = append(warnings, "session.workflow_id not configured. The voice agent cannot generate interviews.")
		}
	case TransportDeepgram:
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured. Live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown session.transport %q. Using %s.", cfg.Session.Transport, TransportRelay))
		cfg.Session.Transport = TransportRelay
	}

	if d, err := time.ParseDuration(cfg.Session.IdleTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid session.idle_timeout %q. Using default 30s.", cfg.Session.IdleTimeout))
	}
	if cfg.RateLimit.PerMinute <= 0 {
		warnings = append(warnings, "rate_limit.per_minute is not positive. Feedback requests are not rate limited.")
	}

	if cfg.GDriveEnabled() && cfg.GDrive.BackupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.GDrive.BackupSchedule); err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid gdrive.backup_schedule %q. Database backups are disabled.", cfg.GDrive.BackupSchedule))
			cfg.GDrive.BackupSchedule = ""
		}
	}

	return warnings
}
