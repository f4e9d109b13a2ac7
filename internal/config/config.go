package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opentalon/leadgate/internal/gateway/script"
	"github.com/opentalon/leadgate/internal/scheduler"
)

type Config struct {
	Model          ModelConfig        `yaml:"model"`
	Siek           SiekConfig         `yaml:"siek"`
	Orchestrator   OrchestratorConfig `yaml:"orchestrator"`
	Store          StoreConfig        `yaml:"store"`
	Server         ServerConfig       `yaml:"server"`
	Mailing        MailingConfig      `yaml:"mailing"`
	Logging        LoggingConfig      `yaml:"logging"`
	Scheduler      SchedulerConfig    `yaml:"scheduler"`
	ScriptGateways []script.Spec      `yaml:"script_gateways"`
	// ScriptDir is the base for relative script paths. Defaults to the config file's directory.
	ScriptDir string `yaml:"script_dir"`
}

type ModelConfig struct {
	APIKey          string        `yaml:"api_key"`
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	Temperature     float32       `yaml:"temperature"`
	TopP            float32       `yaml:"top_p"`
	TopK            int32         `yaml:"top_k"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
}

type SiekConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type OrchestratorConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	SystemInstruction string        `yaml:"system_instruction"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver"` // sqlite or postgres
	DSN       string `yaml:"dsn"`
	DataDir   string `yaml:"data_dir"`
	RedisAddr string `yaml:"redis_addr"` // optional analysis mirror
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
	IntakeRate   float64  `yaml:"intake_rate"`
	IntakeBurst  int      `yaml:"intake_burst"`
}

type MailingConfig struct {
	Octopus OctopusConfig `yaml:"octopus"`
	SMTP    SMTPConfig    `yaml:"smtp"`
}

type OctopusConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	ListID  string `yaml:"list_id"`
}

type SMTPConfig struct {
	Addr     string   `yaml:"addr"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type SchedulerConfig struct {
	Jobs []scheduler.Job `yaml:"jobs"`
}

const (
	DefaultModel         = "gemini-2.0-flash-exp"
	DefaultSiekURL       = "https://apisiek.grupokossodo.com/mkt"
	DefaultMaxIterations = 10
	DefaultAddr          = ":8080"
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// expandEnv replaces ${VAR} with its value. Unset variables are left as-is.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// unresolved reports a value that still holds a ${VAR} placeholder.
func unresolved(s string) bool { return envPattern.MatchString(s) }

func expandEnvInConfig(cfg *Config) {
	for _, p := range []*string{
		&cfg.Model.APIKey, &cfg.Model.BaseURL,
		&cfg.Siek.APIKey, &cfg.Siek.BaseURL,
		&cfg.Store.DSN, &cfg.Store.DataDir, &cfg.Store.RedisAddr,
		&cfg.Server.Addr,
		&cfg.Mailing.Octopus.APIKey, &cfg.Mailing.Octopus.ListID, &cfg.Mailing.Octopus.BaseURL,
		&cfg.Mailing.SMTP.Addr, &cfg.Mailing.SMTP.Username, &cfg.Mailing.SMTP.Password, &cfg.Mailing.SMTP.From,
	} {
		*p = expandEnv(*p)
	}
	for i := range cfg.Mailing.SMTP.To {
		cfg.Mailing.SMTP.To[i] = expandEnv(cfg.Mailing.SMTP.To[i])
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Dir(path)
	}
	return cfg, nil
}

// Parse decodes YAML, expands ${VAR} references and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandEnvInConfig(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Model.Name == "" {
		c.Model.Name = DefaultModel
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = 30 * time.Second
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.7
	}
	if c.Model.TopP == 0 {
		c.Model.TopP = 0.95
	}
	if c.Model.TopK == 0 {
		c.Model.TopK = 40
	}
	if c.Model.MaxOutputTokens == 0 {
		c.Model.MaxOutputTokens = 2048
	}
	if c.Siek.BaseURL == "" {
		c.Siek.BaseURL = DefaultSiekURL
	}
	if c.Siek.Timeout <= 0 {
		c.Siek.Timeout = 15 * time.Second
	}
	if c.Orchestrator.MaxIterations <= 0 {
		c.Orchestrator.MaxIterations = DefaultMaxIterations
	}
	if c.Orchestrator.CallTimeout <= 0 {
		c.Orchestrator.CallTimeout = 30 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "./data"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate reports every invalid or unresolved setting at once. Missing API
// keys are not errors: the model client and registry lookup report them per call.
func (c *Config) Validate() error {
	var errs []error
	if unresolved(c.Model.APIKey) {
		errs = append(errs, fmt.Errorf("model.api_key: environment variable in %q is not set", c.Model.APIKey))
	}
	if unresolved(c.Siek.APIKey) {
		errs = append(errs, fmt.Errorf("siek.api_key: environment variable in %q is not set", c.Siek.APIKey))
	}
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" || unresolved(c.Store.DSN) {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite or postgres", c.Store.Driver))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want json or console", c.Logging.Format))
	}
	if c.Server.IntakeRate < 0 {
		errs = append(errs, errors.New("server.intake_rate must not be negative"))
	}
	seen := make(map[string]bool)
	for i, j := range c.Scheduler.Jobs {
		if j.Name == "" || j.Schedule == "" || j.Action == "" {
			errs = append(errs, fmt.Errorf("scheduler.jobs[%d]: name, schedule and action are required", i))
			continue
		}
		if seen[j.Name] {
			errs = append(errs, fmt.Errorf("scheduler.jobs[%d]: duplicate name %q", i, j.Name))
		}
		seen[j.Name] = true
	}
	for i, g := range c.ScriptGateways {
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("script_gateways[%d]: name is required", i))
		}
		if len(g.Capabilities) == 0 {
			errs = append(errs, fmt.Errorf("script_gateways[%d]: at least one capability is required", i))
		}
	}
	return errors.Join(errs...)
}
