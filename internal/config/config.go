package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models regimen.yml: the user profile plus the council's policy
// tables (time-of-day modifiers, negotiation violation table, thresholds).
type Config struct {
	Profile struct {
		Name                string   `yaml:"name"`
		WakeTime            string   `yaml:"wake_time"`
		BedTime             string   `yaml:"bed_time"`
		GoalTags            []string `yaml:"goal_tags"`
		StimulantCutoffHour int      `yaml:"stimulant_cutoff_hour"`
		RecoveryFloor       float64  `yaml:"recovery_floor"`
	} `yaml:"profile"`
	Council struct {
		OverrideUrgency   float64 `yaml:"override_urgency"`
		AlertUrgency      float64 `yaml:"alert_urgency"`
		ConstraintPenalty float64 `yaml:"constraint_penalty"`
		UpcomingCount     int     `yaml:"upcoming_count"`
	} `yaml:"council"`
	TimeOfDay  []TimeOfDayRule `yaml:"time_of_day"`
	Violations []ViolationRule `yaml:"violations"`
	Annotator  struct {
		Model    string `yaml:"model"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"annotator"`
}

// TimeOfDayRule adds Delta to a domain's candidate urgency during a bucket.
type TimeOfDayRule struct {
	Domain string  `yaml:"domain"`
	Bucket string  `yaml:"bucket"`
	Delta  float64 `yaml:"delta"`
}

// ViolationRule declares that actions of Category violate Constraint.
type ViolationRule struct {
	Category   string `yaml:"category"`
	Constraint string `yaml:"constraint"`
}

var validBuckets = map[string]bool{
	"morning":   true,
	"midday":    true,
	"afternoon": true,
	"evening":   true,
	"night":     true,
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rgm config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := ParseClock(c.Profile.WakeTime); err != nil {
		return fmt.Errorf("config.profile.wake_time: %w", err)
	}
	if _, err := ParseClock(c.Profile.BedTime); err != nil {
		return fmt.Errorf("config.profile.bed_time: %w", err)
	}
	if c.Profile.StimulantCutoffHour < 0 || c.Profile.StimulantCutoffHour > 23 {
		return fmt.Errorf("config.profile.stimulant_cutoff_hour must be 0-23")
	}
	if c.Profile.RecoveryFloor < 0 || c.Profile.RecoveryFloor > 100 {
		return fmt.Errorf("config.profile.recovery_floor must be 0-100")
	}
	if c.Council.OverrideUrgency < 0 || c.Council.OverrideUrgency > 100 {
		return fmt.Errorf("config.council.override_urgency must be 0-100")
	}
	if c.Council.AlertUrgency < 0 || c.Council.AlertUrgency > 100 {
		return fmt.Errorf("config.council.alert_urgency must be 0-100")
	}
	if c.Council.ConstraintPenalty < 0 || c.Council.ConstraintPenalty > 100 {
		return fmt.Errorf("config.council.constraint_penalty must be 0-100")
	}
	if c.Council.UpcomingCount < 1 || c.Council.UpcomingCount > 10 {
		return fmt.Errorf("config.council.upcoming_count must be 1-10")
	}
	for i, rule := range c.TimeOfDay {
		if rule.Domain == "" {
			return fmt.Errorf("time_of_day[%d]: domain is required", i)
		}
		if !validBuckets[rule.Bucket] {
			return fmt.Errorf("time_of_day[%d]: unknown bucket %q", i, rule.Bucket)
		}
	}
	for i, rule := range c.Violations {
		if rule.Category == "" || rule.Constraint == "" {
			return fmt.Errorf("violations[%d]: category and constraint are required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "regimen.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

const defaultTemplate = `profile:
  name: default
  wake_time: "06:30"
  bed_time: "22:30"
  goal_tags: [general_fitness]
  stimulant_cutoff_hour: 16
  recovery_floor: 40

council:
  override_urgency: 90
  alert_urgency: 70
  constraint_penalty: 50
  upcoming_count: 3

time_of_day:
  - {domain: fuel, bucket: morning, delta: 15}
  - {domain: fuel, bucket: midday, delta: 10}
  - {domain: mindspace, bucket: midday, delta: 10}
  - {domain: mindspace, bucket: afternoon, delta: 10}
  - {domain: mindspace, bucket: night, delta: -20}
  - {domain: recovery, bucket: afternoon, delta: -10}
  - {domain: recovery, bucket: evening, delta: 15}
  - {domain: recovery, bucket: night, delta: 20}
  - {domain: performance, bucket: night, delta: -30}
  - {domain: circadian, bucket: evening, delta: 10}
  - {domain: circadian, bucket: night, delta: 15}

violations:
  - {category: eating, constraint: digestive_load_risk}
  - {category: stimulant, constraint: stimulant_risk}
  - {category: stimulant, constraint: overstimulation_risk}
  - {category: training, constraint: injury_risk}
  - {category: mental, constraint: overstimulation_risk}

annotator:
  model: gemini-2.0-flash
  disabled: false
`
