package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the YAML omits a field.
const (
	DefaultMaxIterations = 10
	DefaultToolTimeout   = 30 * time.Second
	DefaultMaxTokens     = 4096
	DefaultTemperature   = 0.1
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("30s") or a bare number of seconds, matching older config files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var s string
		if err := value.Decode(&s); err != nil {
			return fmt.Errorf("invalid duration value at line %d", value.Line)
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Agent holds model selection and prompt knobs. Temperature is a pointer so
// an explicit 0 can be told apart from an omitted field.
type Agent struct {
	Model        string   `yaml:"model"`
	MaxTokens    int64    `yaml:"max_tokens"`
	Temperature  *float64 `yaml:"temperature"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Conversation bounds the driver loop.
//
// RequestTimeout bounds each model request; zero means unbounded, in which
// case a hung backend call blocks the run. ToolTimeout is advisory: a handler
// that ignores its context may keep running after the timeout is reported.
type Conversation struct {
	MaxIterations        int      `yaml:"max_iterations"`
	ToolTimeout          Duration `yaml:"tool_timeout"`
	RequestTimeout       Duration `yaml:"request_timeout"`
	RequireFinalDecision bool     `yaml:"require_final_decision"`
}

// Config is the full file surface consumed by cmd/agent.
type Config struct {
	Agent        Agent        `yaml:"agent"`
	Conversation Conversation `yaml:"conversation"`
	Prompt       string       `yaml:"prompt"`
	ReportPath   string       `yaml:"report_path"`
}

// Load reads and validates a YAML config file, filling defaults for omitted
// fields.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Conversation.MaxIterations <= 0 {
		c.Conversation.MaxIterations = DefaultMaxIterations
	}
	if c.Conversation.ToolTimeout <= 0 {
		c.Conversation.ToolTimeout = Duration(DefaultToolTimeout)
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = DefaultMaxTokens
	}
	if c.Agent.Temperature == nil {
		temp := DefaultTemperature
		c.Agent.Temperature = &temp
	}
}

func (c *Config) validate() error {
	if c.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if c.Conversation.RequestTimeout < 0 {
		return fmt.Errorf("conversation.request_timeout must not be negative")
	}
	return nil
}
