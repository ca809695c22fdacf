package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"leadline/internal/segment"
)

// Config models leadline.yml.
type Config struct {
	Business struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"business"`
	Windows  []WindowConfig   `yaml:"windows"`
	Weights  map[string][]int `yaml:"weights"`
	Webhooks []WebhookConfig  `yaml:"webhooks"`
	Server   ServerConfig     `yaml:"server"`
}

type WindowConfig struct {
	ID    string `yaml:"id"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

type ServerConfig struct {
	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with leadline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil || c.Business.Timezone == "" {
		return fmt.Errorf("config.business.timezone %q is invalid", c.Business.Timezone)
	}
	if len(c.Windows) == 0 {
		return fmt.Errorf("config.windows is required")
	}
	windows, err := c.parseWindows()
	if err != nil {
		return err
	}
	for i, w := range windows {
		if w.Start >= w.End {
			return fmt.Errorf("window %s must start before it ends", w.ID)
		}
		for _, other := range windows[:i] {
			if w.ID == other.ID {
				return fmt.Errorf("window id %s is duplicated", w.ID)
			}
			if w.Start < other.End && other.Start < w.End {
				return fmt.Errorf("window %s overlaps %s", w.ID, other.ID)
			}
		}
	}
	for key, weights := range c.Weights {
		if !segment.Valid(key) {
			return fmt.Errorf("config.weights has unknown segment %s", key)
		}
		if len(weights) != len(c.Windows) {
			return fmt.Errorf("segment %s has %d weights for %d windows", key, len(weights), len(c.Windows))
		}
		for _, w := range weights {
			if w < 0 || w > 3 {
				return fmt.Errorf("segment %s weight %d out of range 0..3", key, w)
			}
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

func (c *Config) parseWindows() ([]segment.Window, error) {
	out := make([]segment.Window, 0, len(c.Windows))
	for _, w := range c.Windows {
		if w.ID == "" {
			return nil, fmt.Errorf("window id is required")
		}
		start, err := segment.ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window %s start: %w", w.ID, err)
		}
		end, err := segment.ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("window %s end: %w", w.ID, err)
		}
		out = append(out, segment.Window{ID: w.ID, Start: start, End: end})
	}
	return out, nil
}

// Location returns the business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Picker builds the segment picker for the configured windows and weights.
// Short segment keys in the weight table are normalised to full keys.
func (c *Config) Picker() (segment.Picker, error) {
	windows, err := c.parseWindows()
	if err != nil {
		return segment.Picker{}, err
	}
	weights := make(map[string][]int, len(c.Weights))
	for key, row := range c.Weights {
		meta, ok := segment.Lookup(key)
		if !ok {
			return segment.Picker{}, fmt.Errorf("unknown segment %s", key)
		}
		weights[meta.Key] = append([]int(nil), row...)
	}
	return segment.Picker{Location: c.Location(), Windows: windows, Weights: weights}, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "leadline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
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

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "Europe/Lisbon"
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

const defaultTemplate = `business:
  timezone: Europe/Lisbon

# Calling windows, [start, end) in business local time.
windows:
  - {id: W1, start: "10:00", end: "11:45"}
  - {id: W2, start: "11:45", end: "14:30"}
  - {id: W3, start: "14:30", end: "16:00"}
  - {id: W4, start: "16:00", end: "17:30"}
  - {id: W5, start: "17:30", end: "19:15"}

# One weight per window. 3 = best, 0 = avoid.
weights:
  A_CONSTRUCAO_SERVICOS_LAR:           [2, 3, 2, 1, 0]
  B_RESTAURACAO_CAFES_PASTELARIAS:     [3, 0, 3, 1, 0]
  C_CABELEIREIROS_BARBEARIAS_ESTETICA: [2, 2, 2, 2, 0]
  D_OFICINAS_AUTO_PNEUS_SERVICOS_AUTO: [2, 2, 3, 2, 1]
  E_MERCEARIAS_MERCADOS_PADARIAS:      [2, 3, 2, 2, 0]
  F_LOJAS_ROUPA_CALCADO_DECORACAO:     [2, 3, 3, 2, 1]
  G_CLINICAS_SAUDE_WELLNESS:           [2, 3, 2, 1, 0]
  H_ALOJAMENTO_LOCAL_HOTEIS:           [1, 2, 3, 2, 1]
  I_ESCOLAS_CURSOS_CENTROS_ESTUDO:     [2, 1, 1, 3, 2]
  J_PROFISSIONAIS_LIBERAIS_SERVICOS:   [3, 2, 2, 3, 1]

webhooks: []

server:
  cors_origins: []
`
