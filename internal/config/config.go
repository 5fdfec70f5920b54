package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// FileName is the per-user configuration file name resolved under $HOME.
const FileName = ".neonrc"

// Config represents the nightly run configuration loaded from ~/.neonrc.
//
// The typed fields cover the settings neon itself interprets. Every scalar in
// the file, including keys neon does not know about, is additionally available
// through Get/Keys/Values so fetch units and publish targets can read their own
// settings (e.g. "ftp_host").
type Config struct {
	RootDir    string          `yaml:"root_dir"`
	AppVersion string          `yaml:"app_version"`
	Revision   string          `yaml:"revision"`
	Components []Component     `yaml:"components" validate:"dive"`
	Build      *BuildConfig    `yaml:"build,omitempty"`
	Publish    []PublishTarget `yaml:"publish" validate:"dive"`
	Policy     PolicyConfig    `yaml:"policy"`
	Timeouts   TimeoutConfig   `yaml:"timeouts"`
	Retention  RetentionConfig `yaml:"retention"`
	Retry      RetryConfig     `yaml:"retry"`
	History    HistoryConfig   `yaml:"history"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Schedule   ScheduleConfig  `yaml:"schedule"`

	path   string
	values map[string]string
}

// Component describes one upstream source tree fetched into BASEPATH/<name>.
type Component struct {
	Name      string      `yaml:"name" validate:"required"`
	URL       string      `yaml:"url" validate:"required"`
	Branch    string      `yaml:"branch,omitempty"`
	Tag       string      `yaml:"tag,omitempty" validate:"excluded_with=Branch"`
	Depth     int         `yaml:"depth,omitempty" validate:"gte=0"`
	Auth      *AuthConfig `yaml:"auth,omitempty"`
	DependsOn []string    `yaml:"depends_on,omitempty"`
}

// AuthType enumerates supported git authentication methods.
type AuthType string

const (
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
	AuthTypeSSH   AuthType = "ssh"
)

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Type     AuthType `yaml:"type" validate:"required,oneof=token basic ssh"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// BuildConfig configures the build driver for the terminal component.
type BuildConfig struct {
	Component string            `yaml:"component" validate:"required"`
	DependsOn []string          `yaml:"depends_on,omitempty"`
	Steps     [][]string        `yaml:"steps" validate:"required,min=1,dive,min=1"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// PublishKind enumerates publish target implementations.
type PublishKind string

const (
	PublishKindFile   PublishKind = "file"
	PublishKindFTP    PublishKind = "ftp"
	PublishKindDistro PublishKind = "distro"
	PublishKindNATS   PublishKind = "nats"
)

// PublishTarget is a descriptor for one publish/distribution channel.
type PublishTarget struct {
	Name string      `yaml:"name" validate:"required"`
	Kind PublishKind `yaml:"kind" validate:"required,oneof=file ftp distro nats"`

	// file
	Path   string `yaml:"path,omitempty" validate:"required_if=Kind file"`
	Latest bool   `yaml:"latest,omitempty"`

	// ftp
	Address   string `yaml:"address,omitempty" validate:"required_if=Kind ftp"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	RemoteDir string `yaml:"remote_dir,omitempty"`

	// distro
	Command []string          `yaml:"command,omitempty" validate:"required_if=Kind distro"`
	Env     map[string]string `yaml:"env,omitempty"`

	// nats
	URL       string `yaml:"url,omitempty" validate:"required_if=Kind nats"`
	Subject   string `yaml:"subject,omitempty"`
	JetStream bool   `yaml:"jetstream,omitempty"`
}

// PolicyConfig selects how failures inside a stage propagate.
type PolicyConfig struct {
	Fetch   ErrorPolicy `yaml:"fetch" validate:"oneof=fail_fast continue"`
	Publish ErrorPolicy `yaml:"publish" validate:"oneof=fail_fast continue"`
}

// TimeoutConfig bounds individual unit invocations; zero means unbounded.
type TimeoutConfig struct {
	Fetch   time.Duration `yaml:"fetch"`
	Build   time.Duration `yaml:"build"`
	Publish time.Duration `yaml:"publish"`
}

// RetentionConfig drives the cleanup stage.
type RetentionConfig struct {
	Keep         *int `yaml:"keep,omitempty" validate:"omitempty,gte=0"`
	PruneSources bool `yaml:"prune_sources"`
}

// RetryConfig configures backoff for transient fetch and upload failures.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode" validate:"oneof=fixed linear exponential"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries *int             `yaml:"max_retries,omitempty" validate:"omitempty,gte=0"`
}

// HistoryConfig configures the SQLite run ledger.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path,omitempty"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// ScheduleConfig configures the daemon trigger.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// DefaultPath returns <home>/.neonrc for the given environment lookup.
func DefaultPath(lookup func(string) (string, bool)) (string, error) {
	home, ok := lookup("HOME")
	if !ok || home == "" {
		return "", errors.EnvironmentError("HOME is not set; cannot resolve configuration path").Build()
	}
	return filepath.Join(home, FileName), nil
}

// Load loads configuration from the specified file.
// Any failure is reported as a config-category ClassifiedError and no partial
// configuration is returned.
func Load(configPath string) (*Config, error) {
	loadEnvFile(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, loadError("configuration file not found", configPath, err)
		}
		return nil, loadError("failed to read configuration file", configPath, err)
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, loadError("failed to parse configuration file", configPath, err)
	}
	cfg.path = configPath
	return cfg, nil
}

// Parse decodes, defaults and validates configuration content.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("configuration is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configuration root must be a mapping, got %s", kindName(root.Kind))
	}

	values := make(map[string]string)
	if err := flatten("", root, values); err != nil {
		return nil, err
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.values = values
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadError(msg, path string, cause error) error {
	return errors.ConfigError(msg).
		WithCause(cause).
		WithContext("path", path).
		Build()
}

// Path returns the file the configuration was loaded from (empty for Parse).
func (c *Config) Path() string { return c.path }

// Get returns the raw scalar value of a setting by its dotted key.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetOr returns the setting or def when absent.
func (c *Config) GetOr(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Keys returns every declared setting key, sorted.
func (c *Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Values returns a copy of the flat setting mapping.
func (c *Config) Values() map[string]string {
	return maps.Clone(c.values)
}

// Component returns the named component descriptor.
func (c *Config) Component(name string) (Component, bool) {
	for _, comp := range c.Components {
		if comp.Name == name {
			return comp, true
		}
	}
	return Component{}, false
}

// flatten walks a YAML node collecting scalar leaves under dotted keys.
// Duplicate keys at any level are rejected.
func flatten(prefix string, n *yaml.Node, out map[string]string) error {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		seen := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if line, dup := seen[k.Value]; dup {
				return fmt.Errorf("line %d: key %q already defined at line %d", k.Line, joinKey(prefix, k.Value), line)
			}
			seen[k.Value] = k.Line
			if err := flatten(joinKey(prefix, k.Value), v, out); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			if err := flatten(joinKey(prefix, fmt.Sprint(i)), item, out); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			out[prefix] = ""
			return nil
		}
		out[prefix] = n.Value
	}
	return nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "mapping"
	}
}
