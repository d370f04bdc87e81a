package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/validation"
)

// Document is one rules file.
type Document struct {
	// DisableAllRules turns every processing pass into a no-op.
	DisableAllRules bool               `yaml:"disable_all_rules"`
	Rules           []core.Rule        `yaml:"rules"`
	Externals       []core.ExternalRef `yaml:"externals"`
	Settings        map[string]any     `yaml:"settings"`
}

// Config is the merged result of one or more rules documents.
type Config struct {
	DisableAllRules bool
	Rules           []core.Rule
	Externals       []core.ExternalRef
	Settings        Settings

	// Files lists the documents that were read, in load order.
	Files []string
}

// Settings are the engine settings carried in the rules documents.
type Settings struct {
	Audit AuditSettings `mapstructure:"audit"`

	// DefaultSecretLength is used by random_secret helpers without a length.
	DefaultSecretLength int `mapstructure:"default_secret_length"`
}

// AuditSettings holds configuration for auditing.
type AuditSettings struct {
	Type string `mapstructure:"type"` // e.g., "file", "memory", "noop"
	Path string `mapstructure:"path"`
}

func (s *Settings) Validate() error {
	switch s.Audit.Type {
	case "", "noop", "memory":
	case "file":
		if s.Audit.Path == "" {
			return fmt.Errorf("audit type 'file' requires a path")
		}
	default:
		return fmt.Errorf("unknown audit type '%s'", s.Audit.Type)
	}
	if s.DefaultSecretLength < 0 {
		return fmt.Errorf("default_secret_length must not be negative")
	}
	return nil
}

// Load reads the rules document at path, or every *.yaml / *.yml document in
// the directory at path in lexical order, and validates the result.
func Load(path string, sink logging.InternalLogger) (*Config, error) {
	files, err := documentFiles(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	settings := make(map[string]any)
	for _, file := range files {
		doc, err := readDocument(file)
		if err != nil {
			return nil, err
		}
		cfg.DisableAllRules = cfg.DisableAllRules || doc.DisableAllRules
		cfg.Rules = append(cfg.Rules, doc.Rules...)
		cfg.Externals = append(cfg.Externals, doc.Externals...)
		for k, v := range doc.Settings {
			settings[k] = v
		}
		cfg.Files = append(cfg.Files, file)
	}

	if err := decodeSettings(settings, &cfg.Settings); err != nil {
		return nil, err
	}
	if err := cfg.Validate(sink); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}
	return &cfg, nil
}

// Parse decodes and validates a single rules document.
func Parse(data []byte, sink logging.InternalLogger) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	cfg := &Config{
		DisableAllRules: doc.DisableAllRules,
		Rules:           doc.Rules,
		Externals:       doc.Externals,
	}
	if err := decodeSettings(doc.Settings, &cfg.Settings); err != nil {
		return nil, err
	}
	if err := cfg.Validate(sink); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}
	return cfg, nil
}

func documentFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rules documents in '%s'", path)
	}
	sort.Strings(files)
	return files, nil
}

func readDocument(file string) (*Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file '%s': %w", file, err)
	}
	return &doc, nil
}

func decodeSettings(raw map[string]any, out *Settings) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create settings decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode settings: %w", err)
	}
	return nil
}

// Validate checks the externals and rules. Disabled rules are removed.
func (c *Config) Validate(sink logging.InternalLogger) error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	known, err := validation.KnownExternals(c.Externals)
	if err != nil {
		return err
	}

	validRules, err := validation.ValidateRules(c.Rules, known, sink)
	if err != nil {
		return err
	}
	c.Rules = validRules
	return nil
}

// RuleSet indexes the validated rules.
func (c *Config) RuleSet() *core.RuleSet {
	return core.NewRuleSet(c.Rules)
}
