package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	PageClientColly = "colly"
	PageClientHTTP  = "http"
)

const (
	DefaultAPIBaseURL        = "https://genius.com/api"
	DefaultContainerSelector = `div[data-lyrics-container="true"]`
)

type ParseConfig struct {
	ContainerSelector   string `yaml:"container_selector"`
	ContainerSeparator  string `yaml:"container_separator"`
	ReadabilityFallback bool   `yaml:"readability_fallback"`
	Progress            bool   `yaml:"progress"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Songs string `yaml:"songs"`
	} `yaml:"collections"`
}

// Enabled reports whether a song index connection is configured.
func (c DBConfig) Enabled() bool {
	return strings.TrimSpace(c.Connection) != ""
}

type SpiderConfig struct {
	ArtistIDs        []string      `yaml:"artist_ids"`
	APIBaseURL       string        `yaml:"api_base_url"`
	RawRoot          string        `yaml:"raw_root"`
	ParsedRoot       string        `yaml:"parsed_root"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	StartPage        int           `yaml:"start_page"`
	PerPage          int           `yaml:"per_page"`
	Workers          int           `yaml:"workers"`
	RespectRobotsTxt bool          `yaml:"respect_robots_txt"`
	PageClient       string        `yaml:"page_client"`
	LogLevel         string        `yaml:"log_level"`
	Parse            ParseConfig   `yaml:"parse"`
	DB               DBConfig      `yaml:"db"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *SpiderConfig {
	cfg := &SpiderConfig{
		ArtistIDs:      []string{"45"},
		APIBaseURL:     DefaultAPIBaseURL,
		RawRoot:        "raw_files",
		ParsedRoot:     "parsed_files",
		RequestTimeout: 30 * time.Second,
		UserAgent:      "lyrics_spider/1.0",
		Workers:        1,
		PageClient:     PageClientColly,
		LogLevel:       "debug",
		Parse: ParseConfig{
			ContainerSelector: DefaultContainerSelector,
		},
		DB: DBConfig{Database: "lyrics"},
	}
	cfg.DB.Collections.Songs = "songs"
	return cfg
}

// LoadConfig reads a YAML file over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*SpiderConfig, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SpiderConfig) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("LYRICS_ARTIST_IDS"); ok {
		c.ArtistIDs = splitList(v)
	}
	if v, ok := lookup("LYRICS_RAW_ROOT"); ok && v != "" {
		c.RawRoot = v
	}
	if v, ok := lookup("LYRICS_PARSED_ROOT"); ok && v != "" {
		c.ParsedRoot = v
	}
	if v, ok := lookup("LYRICS_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("LYRICS_MONGO_URI"); ok {
		c.DB.Connection = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate fills zero values that have a sane default and rejects the rest.
func (c *SpiderConfig) Validate() error {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.Parse.ContainerSelector == "" {
		c.Parse.ContainerSelector = DefaultContainerSelector
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	switch c.PageClient {
	case "":
		c.PageClient = PageClientColly
	case PageClientColly, PageClientHTTP:
	default:
		return fmt.Errorf("config: page_client must be %q or %q, got %q", PageClientColly, PageClientHTTP, c.PageClient)
	}
	if c.RawRoot == "" {
		return errors.New("config: raw_root is required")
	}
	if c.ParsedRoot == "" {
		return errors.New("config: parsed_root is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.StartPage < 0 || c.PerPage < 0 {
		return errors.New("config: start_page and per_page must not be negative")
	}
	return nil
}
