package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/workflow"
	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	domainwf "github.com/garyjia/travel-reimbursement/internal/domain/workflow"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/exchange"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Notifier names accepted in the notifiers list
const (
	NotifierLog  = "log"
	NotifierLark = "lark"
	NotifierSMTP = "smtp"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Logger    LoggerConfig   `mapstructure:"logger"`
	Rates     RatesConfig    `mapstructure:"rates"`
	Approval  ApprovalConfig `mapstructure:"approval"`
	Exchange  ExchangeConfig `mapstructure:"exchange"`
	OpenAI    OpenAIConfig   `mapstructure:"openai"`
	Lark      LarkConfig     `mapstructure:"lark"`
	SMTP      SMTPConfig     `mapstructure:"smtp"`
	Worker    WorkerConfig   `mapstructure:"worker"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Notifiers []string       `mapstructure:"notifiers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// RatesConfig points at the rate table file imported on startup. With an empty path the
// server keeps the table already stored in the database.
type RatesConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// ApprovalConfig is the approval policy. Thresholds are in the reporting currency.
type ApprovalConfig struct {
	ReportingCurrency  string              `mapstructure:"reporting_currency"`
	FastTrackThreshold decimal.Decimal     `mapstructure:"fast_track_threshold"`
	HighValueThreshold decimal.Decimal     `mapstructure:"high_value_threshold"`
	Steps              []domainwf.StepRule `mapstructure:"steps"`
	// Escalation maps a role to the role notified when its step is overdue
	Escalation map[string]string `mapstructure:"escalation"`
}

// ExchangeConfig holds statically configured conversion rates
type ExchangeConfig struct {
	Rates []exchange.Rate `mapstructure:"rates"`
}

// OpenAIConfig holds receipt recognition settings. Recognition is off without an API key.
type OpenAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MinConfidence float64       `mapstructure:"min_confidence"`
}

// LarkConfig holds Lark escalation settings
type LarkConfig struct {
	AppID         string            `mapstructure:"app_id"`
	AppSecret     string            `mapstructure:"app_secret"`
	ReceiveIDType string            `mapstructure:"receive_id_type"`
	Recipients    map[string]string `mapstructure:"recipients"`
	FallbackChat  string            `mapstructure:"fallback_chat"`
}

// SMTPConfig holds mail escalation settings
type SMTPConfig struct {
	Host       string            `mapstructure:"host"`
	Port       int               `mapstructure:"port"`
	Username   string            `mapstructure:"username"`
	Password   string            `mapstructure:"password"`
	From       string            `mapstructure:"from"`
	Recipients map[string]string `mapstructure:"recipients"`
	Fallback   string            `mapstructure:"fallback"`
	Locale     string            `mapstructure:"locale"`
}

// WorkerConfig controls the background SLA sweeper
type WorkerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	ReceiptDir string `mapstructure:"receipt_dir"`
}

// Load reads configuration from an optional .env file, the YAML file at configPath and
// environment variables, in increasing order of precedence. An empty configPath loads
// defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(utils.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path unless they are already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Database defaults
	v.SetDefault("database.path", "data/reimbursement.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("rates.sheet", "rates")

	// Approval defaults: supervisor (skipped below fast-track), finance, director above
	// the high-value threshold
	v.SetDefault("approval.reporting_currency", "EUR")
	v.SetDefault("approval.fast_track_threshold", "100")
	v.SetDefault("approval.high_value_threshold", "5000")
	v.SetDefault("approval.steps", []map[string]interface{}{
		{"role": "supervisor", "sla_hours": 24, "fast_track_skippable": true},
		{"role": "finance", "sla_hours": 48},
		{"role": "director", "sla_hours": 72, "high_value_only": true},
	})
	v.SetDefault("approval.escalation", map[string]string{
		"supervisor": "finance",
		"finance":    "director",
	})

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.timeout", 60*time.Second)
	v.SetDefault("openai.min_confidence", 0.5)

	v.SetDefault("lark.receive_id_type", "open_id")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.locale", "en")

	// Worker defaults
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.interval", 5*time.Minute)
	v.SetDefault("worker.batch_size", 500)

	v.SetDefault("storage.receipt_dir", "data/receipts")
	v.SetDefault("notifiers", []string{NotifierLog})
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "SMTP_PASSWORD")

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("rates.path", "RATES_PATH")
	_ = v.BindEnv("approval.reporting_currency", "REPORTING_CURRENCY")
	_ = v.BindEnv("worker.enabled", "SLA_WORKER_ENABLED")
	_ = v.BindEnv("notifiers", "NOTIFIERS")
}

// RuleSet returns the approval policy in domain form
func (c *Config) RuleSet() domainwf.RuleSet {
	return domainwf.RuleSet{
		Currency:           strings.ToUpper(c.Approval.ReportingCurrency),
		FastTrackThreshold: c.Approval.FastTrackThreshold,
		HighValueThreshold: c.Approval.HighValueThreshold,
		Steps:              c.Approval.Steps,
	}
}

// EscalationChain returns the configured role escalation map
func (c *Config) EscalationChain() workflow.EscalationChain {
	chain := make(workflow.EscalationChain, len(c.Approval.Escalation))
	for from, to := range c.Approval.Escalation {
		chain[strings.ToLower(from)] = strings.ToLower(to)
	}
	return chain
}

// HasNotifier reports whether name was selected in the notifiers list
func (c *Config) HasNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Approval policy
	if _, err := currency.ParseCode(c.Approval.ReportingCurrency); err != nil {
		return fmt.Errorf("approval.reporting_currency: %w", err)
	}
	if err := c.RuleSet().Validate(); err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	roles := make(map[string]bool, len(c.Approval.Steps))
	for _, s := range c.Approval.Steps {
		if roles[strings.ToLower(s.Role)] {
			return fmt.Errorf("approval.steps: role %q listed twice", s.Role)
		}
		roles[strings.ToLower(s.Role)] = true
	}
	for from, to := range c.EscalationChain() {
		if to == "" {
			return fmt.Errorf("approval.escalation: role %q escalates to nobody", from)
		}
		if from == to {
			return fmt.Errorf("approval.escalation: role %q escalates to itself", from)
		}
	}

	if _, err := exchange.NewStaticProvider(c.Exchange.Rates); err != nil {
		return fmt.Errorf("exchange.rates: %w", err)
	}

	// Notifiers
	for _, n := range c.Notifiers {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case NotifierLog, NotifierLark, NotifierSMTP:
		default:
			return fmt.Errorf("unknown notifier %q", n)
		}
	}
	if c.HasNotifier(NotifierLark) && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required for the lark notifier")
	}
	if c.HasNotifier(NotifierSMTP) && (c.SMTP.Host == "" || c.SMTP.From == "") {
		return fmt.Errorf("smtp.host and smtp.from are required for the smtp notifier")
	}

	if c.OpenAI.MinConfidence < 0 || c.OpenAI.MinConfidence > 1 {
		return fmt.Errorf("openai.min_confidence must be between 0 and 1")
	}

	if c.Worker.Enabled && c.Worker.Interval <= 0 {
		return fmt.Errorf("worker.interval must be positive when the worker is enabled")
	}

	return nil
}
