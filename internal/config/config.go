package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models opsline.yml.
type Config struct {
	Report     ReportConfig    `yaml:"report" json:"report"`
	RiskLevels RiskLevelConfig `yaml:"risk_levels" json:"risk_levels"`
	RBAC       RBACConfig      `yaml:"rbac" json:"rbac"`
	Webhooks   []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type ReportConfig struct {
	DefaultWindowDays int     `yaml:"default_window_days" json:"default_window_days"`
	TasksListLimit    int     `yaml:"tasks_list_limit" json:"tasks_list_limit"`
	LoadThreshold     int     `yaml:"load_threshold" json:"load_threshold"`
	LoadStep          float64 `yaml:"load_step" json:"load_step"`
	HourlyRate        float64 `yaml:"hourly_rate" json:"hourly_rate"`
	CacheSize         int     `yaml:"cache_size" json:"cache_size"`
}

// RiskLevelConfig holds the predicted-delay thresholds, in days, at which a
// collaborator moves into the next risk level.
type RiskLevelConfig struct {
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

type RBACConfig struct {
	Roles map[string]RBACRole `yaml:"roles" json:"roles"`
}

type RBACRole struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

type WebhookConfig struct {
	ID      string   `yaml:"id" json:"id"`
	URL     string   `yaml:"url" json:"url"`
	Secret  string   `yaml:"secret" json:"secret,omitempty"`
	Events  []string `yaml:"events" json:"events,omitempty"`
	Enabled *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with ol config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// MaxTasksListLimit caps the work items copied into a report's tasks_list.
const MaxTasksListLimit = 50

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Report.DefaultWindowDays <= 0 {
		return fmt.Errorf("config.report.default_window_days must be positive")
	}
	if c.Report.TasksListLimit <= 0 || c.Report.TasksListLimit > MaxTasksListLimit {
		return fmt.Errorf("config.report.tasks_list_limit must be between 1 and %d", MaxTasksListLimit)
	}
	if c.Report.LoadThreshold < 0 {
		return fmt.Errorf("config.report.load_threshold must not be negative")
	}
	if c.Report.LoadStep < 0 {
		return fmt.Errorf("config.report.load_step must not be negative")
	}
	if c.Report.HourlyRate < 0 {
		return fmt.Errorf("config.report.hourly_rate must not be negative")
	}
	if c.Report.CacheSize < 0 {
		return fmt.Errorf("config.report.cache_size must not be negative")
	}
	r := c.RiskLevels
	if r.Medium <= 0 || r.High < r.Medium || r.Critical < r.High {
		return fmt.Errorf("config.risk_levels must be positive and ordered medium <= high <= critical")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "opsline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Webhooks = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// PermissionsForRoles flattens the permissions of the given roles.
func (c *Config) PermissionsForRoles(roles []string) []string {
	seen := map[string]bool{}
	var perms []string
	for _, roleID := range roles {
		role, ok := c.RBAC.Roles[roleID]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	return perms
}

const defaultTemplate = `report:
  default_window_days: 14
  tasks_list_limit: 50
  load_threshold: 5
  load_step: 0.1
  hourly_rate: 0
  cache_size: 64

risk_levels:
  medium: 1
  high: 3
  critical: 5

rbac:
  roles:
    admin:
      description: "Full access across entities"
      permissions: [report.global, report.read, phase.toggle, records.write, rbac.manage]
    coordinator:
      description: "Runs reports and moves processes forward within an entity"
      permissions: [report.read, phase.toggle, records.write]
    analyst:
      description: "Read-only reporting within an entity"
      permissions: [report.read]
`
