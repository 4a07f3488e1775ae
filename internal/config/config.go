// Package config provides configuration loading for the slide tools.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/slide-tools-mcp/internal/converter"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// EnvConfig names the config file used when no path is given explicitly.
const EnvConfig = "SLIDE_MCP_CONFIG"

// DefaultPath is the config file looked up when EnvConfig is unset.
const DefaultPath = "slide-tools.yaml"

// Config represents the application configuration loaded from YAML
type Config struct {
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Format is text or json
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Engine struct {
		// Workers bounds concurrent tile decoding in one block read
		Workers int `yaml:"workers"`

		// DefaultDriver is used when a request names no driver
		DefaultDriver string `yaml:"defaultDriver"`
	} `yaml:"engine"`

	Cache struct {
		// MaxSlides is the number of open slides kept by the servers
		MaxSlides int `yaml:"maxSlides"`
	} `yaml:"cache"`

	Server struct {
		// Addr is the listen address of the HTTP API
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	OCR struct {
		Language string `yaml:"language"`

		// TessdataPrefix overrides the tesseract data directory
		TessdataPrefix string `yaml:"tessdataPrefix"`
	} `yaml:"ocr"`

	Convert struct {
		TileSize    int    `yaml:"tileSize"`
		Quality     int    `yaml:"quality"`
		Compression string `yaml:"compression"`
	} `yaml:"convert"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Engine.Workers = runtime.NumCPU()
	cfg.Engine.DefaultDriver = slide.AutoDriver

	cfg.Cache.MaxSlides = 8

	cfg.Server.Addr = "127.0.0.1:8095"

	cfg.OCR.Language = "eng"

	p := converter.DefaultParams()
	cfg.Convert.TileSize = p.TileWidth
	cfg.Convert.Quality = p.Quality
	cfg.Convert.Compression = p.Compression.String()

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load resolves the config path (explicit path, then SLIDE_MCP_CONFIG, then
// DefaultPath) and loads it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath
	}
	return LoadConfig(path)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Cache.MaxSlides < 0 {
		return fmt.Errorf("cache.maxSlides must not be negative")
	}
	if _, err := c.ConvertParams(); err != nil {
		return err
	}
	return nil
}

// ConvertParams returns the converter parameters described by the convert
// section.
func (c *Config) ConvertParams() (converter.Params, error) {
	p := converter.DefaultParams()
	if c.Convert.Compression != "" {
		comp, err := slide.ParseCompression(c.Convert.Compression)
		if err != nil {
			return p, fmt.Errorf("convert.compression: %w", err)
		}
		p.Compression = comp
	}
	if c.Convert.TileSize > 0 {
		p.TileWidth, p.TileHeight = c.Convert.TileSize, c.Convert.TileSize
	}
	if c.Convert.Quality > 0 {
		p.Quality = c.Convert.Quality
	}
	return p, nil
}

// SlideOptions returns the engine options for opened slides.
func (c *Config) SlideOptions() []slide.Option {
	return []slide.Option{slide.WithWorkers(c.Engine.Workers)}
}
