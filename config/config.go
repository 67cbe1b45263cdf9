package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaos-io/colourpop/segment"
)

const (
	SegmenterRemote = "remote"
	SegmenterAlpha  = "alpha"
)

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Options   segment.Options `yaml:"options"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
}

type SegmenterConfig struct {
	Kind     string        `yaml:"kind"`
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"`
	SweepSpec string        `yaml:"sweep_spec"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	MaxUpload int64  `yaml:"max_upload"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Segmenter: SegmenterConfig{
			Kind:     SegmenterRemote,
			Endpoint: "http://127.0.0.1:8188/",
			Model:    segment.DefaultModel,
			Timeout:  30 * time.Second,
		},
		Options: segment.DefaultOptions(),
		Store: StoreConfig{
			Dir:       "./output",
			Retention: 24 * time.Hour,
			SweepSpec: "@every 1h",
		},
		Server: ServerConfig{
			Addr:      ":8080",
			MaxUpload: 20 << 20,
		},
	}
}

// Load 读取 YAML，未出现的字段保留默认值；path 为空时直接用默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Segmenter.Kind {
	case SegmenterRemote:
		if c.Segmenter.Endpoint == "" {
			errs = append(errs, errors.New("segmenter.endpoint is required for remote segmenter"))
		}
	case SegmenterAlpha:
	default:
		errs = append(errs, fmt.Errorf("unknown segmenter.kind %q", c.Segmenter.Kind))
	}
	if _, err := segment.LookupModel(c.Segmenter.Model); err != nil {
		errs = append(errs, fmt.Errorf("segmenter.model: %w", err))
	}
	if c.Segmenter.Timeout < 0 {
		errs = append(errs, errors.New("segmenter.timeout must not be negative"))
	}
	if err := c.Options.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("options: %w", err))
	}
	if c.Store.Dir == "" {
		errs = append(errs, errors.New("store.dir is required"))
	}
	if c.Store.Retention <= 0 {
		errs = append(errs, errors.New("store.retention must be positive"))
	}
	if c.Server.MaxUpload <= 0 {
		errs = append(errs, errors.New("server.max_upload must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// NewSegmenter 按配置构造分割 provider，模型配置在这里一次性绑定
func (c *Config) NewSegmenter() (segment.Segmenter, error) {
	switch c.Segmenter.Kind {
	case SegmenterAlpha:
		return segment.NewAlphaSegmenter(), nil
	case SegmenterRemote:
		model, err := segment.LookupModel(c.Segmenter.Model)
		if err != nil {
			return nil, err
		}
		return segment.NewRemoteSegmenter(c.Segmenter.Endpoint, model, segment.WithTimeout(c.Segmenter.Timeout))
	default:
		return nil, fmt.Errorf("unknown segmenter.kind %q", c.Segmenter.Kind)
	}
}
