package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig
	Supabase    SupabaseConfig
	Scheduler   SchedulerConfig
	Persist     PersistConfig
	Proxy       ProxyConfig
	Archive     ArchiveConfig
	MetricsAddr string
	DBPath      string
	LogPath     string
	LogLevel    string
	SitesDir    string
	Sites       map[string]*SiteConfig
}

// DatabaseConfig is a direct Postgres connection. When URL is empty the
// Supabase REST endpoint is used instead.
type DatabaseConfig struct {
	URL string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Schema     string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type PersistConfig struct {
	ChunkSize         int
	LoadChunk         int
	InsertConcurrency int
	UpdateConcurrency int
}

type ProxyConfig struct {
	URL string
}

// ArchiveConfig points at S3-compatible storage for run reports. Disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type SiteConfig struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	Source         string    `yaml:"source"`
	BaseURL        string    `yaml:"base_url"`
	PageParam      string    `yaml:"page_param"`
	Fetcher        string    `yaml:"fetcher"`
	RateLimitMS    *int      `yaml:"rate_limit_ms"`
	ItemsTable     string    `yaml:"items_table"`
	SnapshotsTable string    `yaml:"snapshots_table"`
	Sections       []Section `yaml:"sections"`
}

type Section struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"
)

const defaultRateLimitMS = 1000

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimSuffix(os.Getenv("SUPABASE_URL"), "/"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			Schema:     getEnv("SUPABASE_SCHEMA", "auctions"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Persist: PersistConfig{
			ChunkSize:         clamp(getEnvInt("SNAPSHOT_CHUNK_SIZE", 500), 1, 500),
			LoadChunk:         clamp(getEnvInt("SNAPSHOT_LOAD_CHUNK", 1000), 1, 1000),
			InsertConcurrency: clamp(getEnvInt("INSERT_CONCURRENCY", 2), 1, 16),
			UpdateConcurrency: clamp(getEnvInt("UPDATE_CONCURRENCY", 4), 1, 32),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		DBPath:      getEnv("DB_PATH", "monitor.db"),
		LogPath:     getEnv("LOG_PATH", "monitor.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SitesDir:    getEnv("SITES_DIR", "config/sites"),
		Sites:       make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that a primary store is reachable and every site is usable.
func (c *Config) Validate() error {
	if c.Database.URL == "" && (c.Supabase.URL == "" || c.Supabase.ServiceKey == "") {
		return errors.New("either DATABASE_URL or SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}
	if len(c.Sites) == 0 {
		return fmt.Errorf("no site configs found in %s", c.SitesDir)
	}
	for id, site := range c.Sites {
		if err := site.Validate(); err != nil {
			return fmt.Errorf("site %s: %w", id, err)
		}
	}
	return nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		site, err := LoadSiteConfig(path)
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSiteConfig reads one site YAML file and fills in defaults.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	site.applyDefaults()
	return &site, nil
}

func (s *SiteConfig) applyDefaults() {
	if s.Source == "" {
		s.Source = s.ID
	}
	if s.PageParam == "" {
		s.PageParam = "pagina"
	}
	if s.Fetcher == "" {
		s.Fetcher = FetcherBrowser
	}
	if s.RateLimitMS == nil {
		ms := defaultRateLimitMS
		s.RateLimitMS = &ms
	}
	if s.ItemsTable == "" {
		s.ItemsTable = s.Source + "_items"
	}
	if s.SnapshotsTable == "" {
		s.SnapshotsTable = s.Source + "_monitoring"
	}
	s.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
}

func (s *SiteConfig) Validate() error {
	if s.ID == "" {
		return errors.New("missing id")
	}
	if s.BaseURL == "" {
		return errors.New("missing base_url")
	}
	if len(s.Sections) == 0 {
		return errors.New("no sections configured")
	}
	if s.Fetcher != FetcherBrowser && s.Fetcher != FetcherHTTP {
		return fmt.Errorf("unknown fetcher %q", s.Fetcher)
	}
	if s.RateLimitMS != nil && *s.RateLimitMS < 0 {
		return fmt.Errorf("negative rate_limit_ms %d", *s.RateLimitMS)
	}
	return nil
}

// RateLimit is the minimum gap between page fetches. An explicit
// rate_limit_ms of 0 turns pacing off.
func (s *SiteConfig) RateLimit() time.Duration {
	if s.RateLimitMS == nil {
		return defaultRateLimitMS * time.Millisecond
	}
	return time.Duration(*s.RateLimitMS) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
