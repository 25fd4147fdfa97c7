package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/infrastructure/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "EUR", cfg.Approval.ReportingCurrency)
	assert.Equal(t, "100", cfg.Approval.FastTrackThreshold.String())
	assert.Equal(t, "5000", cfg.Approval.HighValueThreshold.String())
	require.Len(t, cfg.Approval.Steps, 3)
	assert.Equal(t, "supervisor", cfg.Approval.Steps[0].Role)
	assert.True(t, cfg.Approval.Steps[0].FastTrackSkippable)
	assert.True(t, cfg.Approval.Steps[2].HighValueOnly)
	assert.Equal(t, "finance", cfg.EscalationChain().Next("Supervisor"))
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
	assert.True(t, cfg.HasNotifier(NotifierLog))
	assert.False(t, cfg.HasNotifier(NotifierLark))
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  read_timeout: 5s
approval:
  reporting_currency: chf
  fast_track_threshold: 50
  high_value_threshold: "2500.50"
  steps:
    - role: manager
      sla_hours: 8
    - role: cfo
      sla_hours: 24
      high_value_only: true
  escalation:
    manager: cfo
exchange:
  rates:
    - from: EUR
      to: CHF
      rate: 0.95
      effective_from: "2024-01-01"
worker:
  enabled: true
  interval: 1m
notifiers: [log, smtp]
smtp:
  host: mail.example.com
  from: travel@example.com
  recipients:
    cfo: cfo@example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)

	rules := cfg.RuleSet()
	assert.Equal(t, "CHF", rules.Currency)
	assert.Equal(t, "50", rules.FastTrackThreshold.String())
	assert.Equal(t, "2500.5", rules.HighValueThreshold.String())
	require.Len(t, rules.Steps, 2)
	assert.Equal(t, "cfo", rules.Steps[1].Role)
	assert.Equal(t, 24, rules.Steps[1].SlaHours)

	assert.Equal(t, "cfo", cfg.EscalationChain().Next("manager"))

	require.Len(t, cfg.Exchange.Rates, 1)
	assert.Equal(t, "0.95", cfg.Exchange.Rates[0].Rate.String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Exchange.Rates[0].EffectiveFrom)

	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, time.Minute, cfg.Worker.Interval)
	assert.True(t, cfg.HasNotifier(NotifierSMTP))
	assert.Equal(t, "cfo@example.com", cfg.SMTP.Recipients["cfo"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("REPORTING_CURRENCY", "USD")
	t.Setenv("NOTIFIERS", "log,lark")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "USD", cfg.RuleSet().Currency)
	assert.True(t, cfg.HasNotifier(NotifierLark))
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no database path", func(c *Config) { c.Database.Path = "" }},
		{"bad reporting currency", func(c *Config) { c.Approval.ReportingCurrency = "EURO" }},
		{"no steps", func(c *Config) { c.Approval.Steps = nil }},
		{"non-positive sla", func(c *Config) { c.Approval.Steps[1].SlaHours = 0 }},
		{"high value below fast track", func(c *Config) { c.Approval.HighValueThreshold = decimal.NewFromInt(10) }},
		{"duplicate role", func(c *Config) { c.Approval.Steps[2].Role = "Finance" }},
		{"self escalation", func(c *Config) { c.Approval.Escalation["finance"] = "finance" }},
		{"empty escalation target", func(c *Config) { c.Approval.Escalation["finance"] = "" }},
		{"non-positive exchange rate", func(c *Config) {
			c.Exchange.Rates = []exchange.Rate{{From: "USD", To: "EUR", Rate: decimal.Zero}}
		}},
		{"unknown notifier", func(c *Config) { c.Notifiers = []string{"log", "pager"} }},
		{"lark without credentials", func(c *Config) { c.Notifiers = []string{"lark"} }},
		{"smtp without host", func(c *Config) { c.Notifiers = []string{"smtp"} }},
		{"confidence out of range", func(c *Config) { c.OpenAI.MinConfidence = 1.5 }},
		{"worker without interval", func(c *Config) {
			c.Worker.Enabled = true
			c.Worker.Interval = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
