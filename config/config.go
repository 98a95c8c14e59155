package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CIDgravity/snakelet"
)

const defaultConfigFile = "config/config.toml"

// config structure
type Config struct {
	API    APIConfig    `mapstructure:"API"`
	Github GithubConfig `mapstructure:"GITHUB"`
	Cache  CacheConfig  `mapstructure:"CACHE"`
	Chart  ChartConfig  `mapstructure:"CHART"`
	Colors ColorsConfig `mapstructure:"COLORS"`
	Tasks  TasksConfig  `mapstructure:"TASKS"`
	Logs   LogsConfig   `mapstructure:"LOGS"`
}

type APIConfig struct {
	ListenPort string `mapstructure:"ListenPort"`
}

type GithubConfig struct {
	Token              string `mapstructure:"Token"` // optional, GITHUB_TOKEN env is used when empty
	BaseURL            string `mapstructure:"BaseURL"`
	RequestTimeout     string `mapstructure:"RequestTimeout"`
	MaxRepositoryPages int    `mapstructure:"MaxRepositoryPages"`
	FallbackRateLimit  int    `mapstructure:"FallbackRateLimit"` // used when /rate_limit can't be loaded at startup
}

type CacheConfig struct {
	Dir string `mapstructure:"Dir"`
	TTL string `mapstructure:"TTL"` // go duration, eg 24h
}

type ChartConfig struct {
	Width              int `mapstructure:"Width"`
	BarHeight          int `mapstructure:"BarHeight"`
	LegendItemWidth    int `mapstructure:"LegendItemWidth"`
	LegendItemMaxCount int `mapstructure:"LegendItemMaxCount"`
	FontSize           int `mapstructure:"FontSize"`
}

type ColorsConfig struct {
	CacheFile string `mapstructure:"CacheFile"`
	SourceURL string `mapstructure:"SourceURL"`
}

type TasksConfig struct {
	MaxParallelTasksAllowed int      `mapstructure:"MaxParallelTasksAllowed"`
	WarmupAccounts          []string `mapstructure:"WarmupAccounts"`
}

type LogsConfig struct {
	Level            string `mapstructure:"Level"` // error | warn | info | debug - case insensitive
	OutputLogsAsJSON bool   `mapstructure:"OutputLogsAsJson"`
}

// Load reads the configuration file on top of the default values
// when path is empty, config/config.toml is searched next to the binary then in the working directory
// and the defaults are used if none is found
func Load(path string) (*Config, error) {
	configFilePath := path

	if configFilePath == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, err
		}

		configFilePath = found
	} else if _, err := os.Stat(configFilePath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configFilePath, err)
	}

	// load default and config file content
	cfg := GetDefault()

	if configFilePath != "" {
		if _, err := snakelet.InitAndLoad(cfg, configFilePath); err != nil {
			return nil, err
		}
	}

	if cfg.Github.Token == "" {
		cfg.Github.Token = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() (string, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return "", err
	}

	candidates := []string{filepath.Join(dir, defaultConfigFile), defaultConfigFile}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	return "", nil
}

// Validate checks the values that can't be defaulted silently
func (c Config) Validate() error {
	if _, err := c.Cache.TTLDuration(); err != nil {
		return fmt.Errorf("invalid CACHE.TTL: %w", err)
	}

	if _, err := c.Github.RequestTimeoutDuration(); err != nil {
		return fmt.Errorf("invalid GITHUB.RequestTimeout: %w", err)
	}

	if c.Tasks.MaxParallelTasksAllowed <= 0 {
		return errors.New("TASKS.MaxParallelTasksAllowed must be greater than 0")
	}

	return nil
}

func (c CacheConfig) TTLDuration() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, err
	}

	if ttl < 0 {
		return 0, errors.New("duration must not be negative")
	}

	return ttl, nil
}

func (c GithubConfig) RequestTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.RequestTimeout)
}

// GetDefault
func GetDefault() *Config {
	return &Config{
		API: APIConfig{
			ListenPort: "5000",
		},
		Github: GithubConfig{
			BaseURL:            "https://api.github.com/",
			RequestTimeout:     "30s",
			MaxRepositoryPages: 10,
			FallbackRateLimit:  60,
		},
		Cache: CacheConfig{
			Dir: "cache/stats",
			TTL: "24h",
		},
		Chart: ChartConfig{
			Width:              600,
			BarHeight:          50,
			LegendItemWidth:    120,
			LegendItemMaxCount: 8,
			FontSize:           14,
		},
		Colors: ColorsConfig{
			CacheFile: "cache/language_colors.json",
			SourceURL: "https://raw.githubusercontent.com/github-linguist/linguist/266912b913855446ec51c002985010dbe51c524a/lib/linguist/languages.yml",
		},
		Tasks: TasksConfig{
			MaxParallelTasksAllowed: 8,
		},
		Logs: LogsConfig{
			Level:            "debug",
			OutputLogsAsJSON: false,
		},
	}
}
