package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Robot     RobotConfig     `yaml:"robot"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Intervals IntervalsConfig `yaml:"intervals"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Storage   StorageConfig   `yaml:"storage"`
}

type RobotConfig struct {
	WSURL  string `yaml:"ws_url"`
	Token  string `yaml:"token"`
	Serial string `yaml:"serial"`
}

type CalendarConfig struct {
	Timezone        string   `yaml:"timezone"`
	SupervisionDays []string `yaml:"supervision_days"`
}

// IntervalsConfig holds every wait of the handoff protocol, in milliseconds.
type IntervalsConfig struct {
	ExternalHoldMs    int `yaml:"external_hold_ms"`
	AgentHoldMs       int `yaml:"agent_hold_ms"`
	AnimationCheckMs  int `yaml:"animation_check_ms"`
	ReconnectMs       int `yaml:"reconnect_ms"`
	AwaitQuestionMs   int `yaml:"await_question_ms"`
	ResetSubroutineMs int `yaml:"reset_subroutine_ms"`
	HighAutonomyMs    int `yaml:"high_autonomy_ms"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type StorageConfig struct {
	StateDir   string `yaml:"state_dir"`
	JournalMax int    `yaml:"journal_max"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (i IntervalsConfig) ExternalHold() time.Duration    { return ms(i.ExternalHoldMs) }
func (i IntervalsConfig) AgentHold() time.Duration       { return ms(i.AgentHoldMs) }
func (i IntervalsConfig) AnimationCheck() time.Duration  { return ms(i.AnimationCheckMs) }
func (i IntervalsConfig) Reconnect() time.Duration       { return ms(i.ReconnectMs) }
func (i IntervalsConfig) AwaitQuestion() time.Duration   { return ms(i.AwaitQuestionMs) }
func (i IntervalsConfig) ResetSubroutine() time.Duration { return ms(i.ResetSubroutineMs) }
func (i IntervalsConfig) HighAutonomy() time.Duration    { return ms(i.HighAutonomyMs) }

// Location resolves the calendar time zone. An empty value means local time.
func (c CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// DefaultConfig returns the configuration used for any key the file
// leaves out.
func DefaultConfig() *Config {
	return &Config{
		Calendar: CalendarConfig{Timezone: "Local"},
		Intervals: IntervalsConfig{
			ExternalHoldMs:    500,
			AgentHoldMs:       1000,
			AnimationCheckMs:  2000,
			ReconnectMs:       10000,
			AwaitQuestionMs:   25000,
			ResetSubroutineMs: 300000,
			HighAutonomyMs:    300000,
		},
		Storage: StorageConfig{
			StateDir:   "/var/lib/autonomyd",
			JournalMax: 10000,
		},
	}
}

// Parse decodes a YAML document over the defaults and applies environment
// overrides. Keys present in the document win, including explicit zeros.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Optional environment overrides for secrets.
	if envToken := os.Getenv("AUTONOMYD_ROBOT_TOKEN"); envToken != "" {
		cfg.Robot.Token = envToken
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Robot.WSURL == "" {
		errs = append(errs, errors.New("robot.ws_url is required"))
	}
	if _, err := c.Calendar.Location(); err != nil {
		errs = append(errs, fmt.Errorf("calendar.timezone: %w", err))
	}
	checks := []struct {
		name  string
		value int
	}{
		{"external_hold_ms", c.Intervals.ExternalHoldMs},
		{"agent_hold_ms", c.Intervals.AgentHoldMs},
		{"animation_check_ms", c.Intervals.AnimationCheckMs},
		{"reconnect_ms", c.Intervals.ReconnectMs},
		{"await_question_ms", c.Intervals.AwaitQuestionMs},
		{"reset_subroutine_ms", c.Intervals.ResetSubroutineMs},
		{"high_autonomy_ms", c.Intervals.HighAutonomyMs},
	}
	for _, check := range checks {
		if check.value < 0 {
			errs = append(errs, fmt.Errorf("intervals.%s must not be negative, got %d", check.name, check.value))
		}
	}
	if c.Storage.JournalMax < 0 {
		errs = append(errs, fmt.Errorf("storage.journal_max must not be negative, got %d", c.Storage.JournalMax))
	}
	return errors.Join(errs...)
}
