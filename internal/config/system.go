package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultRestartDelay is the pause between stop and start on restart.
const DefaultRestartDelay = 2 * time.Second

// Known backend names.
var (
	Drivers   = []string{"sqlite", "postgres", "redis", "mysql"}
	Providers = []string{"stub", "openai", "anthropic", "gemini", "grpc", "subprocess"}
	Platforms = []string{"none", "slack", "discord", "webhook"}
)

// System is the devcrew system configuration (config.yaml).
type System struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`

	Database   Database   `yaml:"database"`
	Completion Completion `yaml:"completion"`
	Messaging  Messaging  `yaml:"messaging"`
	Slack      Slack      `yaml:"slack"`
	GitHub     GitHub     `yaml:"github"`
	Server     Server     `yaml:"server"`
	Events     Events     `yaml:"events"`
	Logging    Logging    `yaml:"logging"`

	// RestartDelay accepts Go duration strings ("2s", "500ms"). Nil means DefaultRestartDelay.
	RestartDelay *time.Duration `yaml:"restart_delay"`

	Agents []Agent `yaml:"agents"`
}

type Database struct {
	Driver string `yaml:"driver"` // sqlite (default), postgres, redis, mysql
	DSN    string `yaml:"dsn"`    // falls back to DATABASE_URL
	Path   string `yaml:"path"`   // sqlite file; default home/protected/db.sqlite
}

type Completion struct {
	Provider    string   `yaml:"provider"`
	Address     string   `yaml:"address"` // grpc
	Command     string   `yaml:"command"` // subprocess
	Args        []string `yaml:"args"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"` // unset uses the backend default
}

type Messaging struct {
	Platform       string `yaml:"platform"`
	DefaultChannel string `yaml:"default_channel"`
}

type Slack struct {
	DefaultChannel string `yaml:"default_channel"`
	WebhookURL     string `yaml:"webhook_url"`
}

type GitHub struct {
	DefaultRepo string `yaml:"default_repo"`
	BaseBranch  string `yaml:"base_branch"`
	BaseURL     string `yaml:"base_url"` // GitHub Enterprise API root
}

type Server struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"` // overridden by DEVCREW_API_KEY
}

type Events struct {
	RedisURL string `yaml:"redis_url"`
	Stream   string `yaml:"stream"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Agent is one configured agent.
type Agent struct {
	Name           string `yaml:"name"`
	Role           string `yaml:"role"`
	Model          string `yaml:"model"`
	Personality    string `yaml:"personality"`
	JobDescription string `yaml:"job_description"`
	SystemPrompt   string `yaml:"system_prompt"`
	Goal           string `yaml:"goal"`
	SlackUsername  string `yaml:"slack_username"`
	GitHubUsername string `yaml:"github_username"`
	Enabled        *bool  `yaml:"enabled"` // nil means enabled
}

// IsEnabled reports whether the agent runs under StartAll.
func (a Agent) IsEnabled() bool { return a.Enabled == nil || *a.Enabled }

// ParsedRole returns the normalized role. Call after Validate.
func (a Agent) ParsedRole() models.Role {
	r, _ := models.ParseRole(a.Role)
	return r
}

// Secrets are read from the environment only, never from config.yaml.
type Secrets struct {
	SlackBotToken   string
	SlackAppToken   string
	DiscordBotToken string
	GitHubToken     string
	OpenAIKey       string
	AnthropicKey    string
	GeminiKey       string
	DatabaseURL     string
	APIKey          string
}

// SecretsFromEnv reads the well-known secret variables.
func SecretsFromEnv() Secrets {
	return Secrets{
		SlackBotToken:   os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:   os.Getenv("SLACK_APP_TOKEN"),
		DiscordBotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		APIKey:          os.Getenv("DEVCREW_API_KEY"),
	}
}

// Path returns the default config file location under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Load reads and validates the system config at path.
func Load(path string) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errs.ErrConfiguration, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a system config document. Unknown keys are rejected.
func Parse(data []byte) (*System, error) {
	var s System
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", errs.ErrConfiguration, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names, roles and backend selections. All problems are
// reported together.
func (s *System) Validate() error {
	var problems []error
	if len(s.Agents) == 0 {
		problems = append(problems, errors.New("no agents configured"))
	}
	seen := make(map[string]bool, len(s.Agents))
	for i, a := range s.Agents {
		name := strings.TrimSpace(a.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Errorf("agents[%d]: name required", i))
		case name != a.Name:
			problems = append(problems, fmt.Errorf("agents[%d]: name %q has surrounding whitespace", i, a.Name))
		case seen[name]:
			problems = append(problems, fmt.Errorf("agents[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
		if _, err := models.ParseRole(a.Role); err != nil {
			problems = append(problems, fmt.Errorf("agents[%d] (%s): %w", i, name, err))
		}
	}
	if d := s.Database.Driver; d != "" && !oneOf(d, Drivers) {
		problems = append(problems, fmt.Errorf("database.driver %q: want one of %s", d, strings.Join(Drivers, ", ")))
	}
	if p := s.Completion.Provider; p != "" && !oneOf(p, Providers) {
		problems = append(problems, fmt.Errorf("completion.provider %q: want one of %s", p, strings.Join(Providers, ", ")))
	}
	if s.Completion.Provider == "grpc" && s.Completion.Address == "" {
		problems = append(problems, errors.New("completion.address required for grpc provider"))
	}
	if t := s.Completion.Temperature; t != nil && (*t < 0 || *t > 2) {
		problems = append(problems, fmt.Errorf("completion.temperature %v must be within [0, 2]", *t))
	}
	if p := s.Messaging.Platform; p != "" && !oneOf(p, Platforms) {
		problems = append(problems, fmt.Errorf("messaging.platform %q: want one of %s", p, strings.Join(Platforms, ", ")))
	}
	if l := s.Logging.Level; l != "" {
		var lv slog.Level
		if err := lv.UnmarshalText([]byte(l)); err != nil {
			problems = append(problems, fmt.Errorf("logging.level: %w", err))
		}
	}
	if s.RestartDelay != nil && *s.RestartDelay < 0 {
		problems = append(problems, errors.New("restart_delay must not be negative"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errs.ErrConfiguration, errors.Join(problems...))
}

// Agent returns the config of the named agent.
func (s *System) Agent(name string) (Agent, bool) {
	for _, a := range s.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// AgentNames returns configured agent names in config order.
func (s *System) AgentNames() []string {
	out := make([]string, len(s.Agents))
	for i, a := range s.Agents {
		out[i] = a.Name
	}
	return out
}

// DefaultChannel is where presence and collaboration notices go.
func (s *System) DefaultChannel() string {
	if s.Messaging.DefaultChannel != "" {
		return s.Messaging.DefaultChannel
	}
	return s.Slack.DefaultChannel
}

// Restart returns the configured restart delay or DefaultRestartDelay.
func (s *System) Restart() time.Duration {
	if s.RestartDelay == nil {
		return DefaultRestartDelay
	}
	return *s.RestartDelay
}

// LogLevel returns the configured slog level, info by default.
func (s *System) LogLevel() slog.Level {
	var lv slog.Level
	if s.Logging.Level == "" || lv.UnmarshalText([]byte(s.Logging.Level)) != nil {
		return slog.LevelInfo
	}
	return lv
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
