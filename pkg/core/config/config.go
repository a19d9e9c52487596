// Package config loads config/catalog.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/extraction"
	"catalog_agent/pkg/core/matcher"
	"catalog_agent/pkg/core/session"

	"gopkg.in/yaml.v2"
)

// DefaultPath is where the server looks for its configuration.
const DefaultPath = "config/catalog.yaml"

// Store backends.
const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
	BackendMemory = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Catalog CatalogConfig `yaml:"catalog"`
	Models  agent.Config  `yaml:"models"`
	Journal JournalConfig `yaml:"journal"`
	Prompts PromptsConfig `yaml:"prompts"`
	Debug   bool          `yaml:"debug"`

	// Filled from the environment only.
	Secret          string `yaml:"-"`
	CredentialsJSON string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepSeekAPIKey  string `yaml:"-"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	MaxUpload  int64         `yaml:"max_upload_bytes"`
}

type StoreConfig struct {
	Backend         string        `yaml:"backend"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	Worksheet       string        `yaml:"worksheet"`
	CredentialsEnv  string        `yaml:"credentials_env"`
	CredentialsFile string        `yaml:"credentials_file"`
	XLSXPath        string        `yaml:"xlsx_path"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	// Header used when the xlsx or memory backend starts from nothing.
	Header []string `yaml:"header"`
}

type CatalogConfig struct {
	MatchThreshold   float64                `yaml:"match_threshold"`
	AllowList        []string               `yaml:"allow_list"`
	Sentinel         string                 `yaml:"sentinel"`
	MaxDocumentChars int                    `yaml:"max_document_chars"`
	Fields           map[string]FieldConfig `yaml:"fields"`
}

// FieldConfig classifies one column. Kind is one of text, boolean, rating,
// autolink, duration.
type FieldConfig struct {
	Kind    string `yaml:"kind"`
	True    string `yaml:"true"`
	False   string `yaml:"false"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Pattern string `yaml:"pattern"`
}

type JournalConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a configuration that runs against a local workbook.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: session.DefaultTTL,
			MaxUpload:  32 << 20,
		},
		Store: StoreConfig{
			Backend:        BackendXLSX,
			Worksheet:      "Foglio1",
			CredentialsEnv: "GCP_SERVICE_ACCOUNT_JSON",
			XLSXPath:       "data/catalog.xlsx",
			CacheTTL:       catalog.DefaultCacheTTL,
			Header:         []string{"Nome Formato", "Descrizione", "Obiettivo", "Logistica"},
		},
		Catalog: CatalogConfig{
			MatchThreshold:   matcher.DefaultThreshold,
			AllowList:        []string{"Descrizione", "Logistica"},
			Sentinel:         extraction.DefaultSentinel,
			MaxDocumentChars: extraction.DefaultMaxDocumentChars,
		},
		Models:  agent.DefaultConfig(),
		Prompts: PromptsConfig{Dir: "resources"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults refills values a partial file left empty.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
	if c.Server.MaxUpload <= 0 {
		c.Server.MaxUpload = d.Server.MaxUpload
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Worksheet == "" {
		c.Store.Worksheet = d.Store.Worksheet
	}
	if c.Store.CredentialsEnv == "" {
		c.Store.CredentialsEnv = d.Store.CredentialsEnv
	}
	if c.Store.XLSXPath == "" {
		c.Store.XLSXPath = d.Store.XLSXPath
	}
	if c.Store.CacheTTL <= 0 {
		c.Store.CacheTTL = d.Store.CacheTTL
	}
	if len(c.Store.Header) == 0 {
		c.Store.Header = d.Store.Header
	}
	if c.Catalog.MatchThreshold <= 0 {
		c.Catalog.MatchThreshold = d.Catalog.MatchThreshold
	}
	if c.Catalog.Sentinel == "" {
		c.Catalog.Sentinel = d.Catalog.Sentinel
	}
	if c.Catalog.MaxDocumentChars <= 0 {
		c.Catalog.MaxDocumentChars = d.Catalog.MaxDocumentChars
	}
	if c.Models.ActiveProvider == "" {
		c.Models.ActiveProvider = d.Models.ActiveProvider
	}
	if c.Models.Agents == nil {
		c.Models.Agents = map[string]agent.AgentConfig{}
	}
	for name, ac := range d.Models.Agents {
		if _, ok := c.Models.Agents[name]; !ok {
			c.Models.Agents[name] = ac
		}
	}
}

func (c *Config) applyEnv() error {
	c.Secret = os.Getenv("CATALOG_SECRET")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")

	if v := os.Getenv("CATALOG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Journal.DatabaseURL = v
	}
	if v := os.Getenv("CATALOG_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CATALOG_DEBUG: %w", err)
		}
		c.Debug = debug
	}

	c.CredentialsJSON = os.Getenv(c.Store.CredentialsEnv)
	if c.CredentialsJSON == "" && c.Store.CredentialsFile != "" {
		data, err := os.ReadFile(c.Store.CredentialsFile)
		if err != nil {
			return fmt.Errorf("read credentials file: %w", err)
		}
		c.CredentialsJSON = string(data)
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var problems []string
	switch c.Store.Backend {
	case BackendSheets:
		if c.Store.SpreadsheetID == "" {
			problems = append(problems, "store.spreadsheet_id is required for the sheets backend")
		}
	case BackendXLSX, BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}
	if c.Catalog.MatchThreshold > 1 {
		problems = append(problems, "catalog.match_threshold must be at most 1")
	}
	if _, err := c.Kinds(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Kinds builds the field-kind table.
func (c *Config) Kinds() (catalog.Kinds, error) {
	kinds := make(catalog.Kinds, len(c.Catalog.Fields))
	for field, fc := range c.Catalog.Fields {
		switch catalog.KindType(strings.ToLower(fc.Kind)) {
		case catalog.KindFreeText, "":
			kinds[field] = catalog.FreeText()
		case catalog.KindBoolean:
			kinds[field] = catalog.Boolean(fc.True, fc.False)
		case catalog.KindRating:
			if fc.Min > fc.Max {
				return nil, fmt.Errorf("field %q: rating min %d exceeds max %d", field, fc.Min, fc.Max)
			}
			kinds[field] = catalog.Rating(fc.Min, fc.Max)
		case catalog.KindAutoLink:
			if fc.Pattern != "" && !strings.Contains(fc.Pattern, "{value}") {
				return nil, fmt.Errorf("field %q: autolink pattern must contain {value}", field)
			}
			kinds[field] = catalog.AutoLink(fc.Pattern)
		case catalog.KindAveragedDuration:
			kinds[field] = catalog.AveragedDuration()
		default:
			return nil, fmt.Errorf("field %q: unknown kind %q", field, fc.Kind)
		}
	}
	return kinds, nil
}
