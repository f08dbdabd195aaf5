package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin page.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MySQLOption is an extra DSN query parameter.
type MySQLOption struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// MySQLConfig configures the event store connection.
type MySQLConfig struct {
	Host         string        `yaml:"host"`
	Port         uint16        `yaml:"port"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	Options      []MySQLOption `yaml:"options"`
}

func (c MySQLConfig) optionsString() string {
	var opts []string
	for _, o := range c.Options {
		opts = append(opts, url.QueryEscape(o.Key)+"="+url.QueryEscape(o.Value))
	}
	return strings.Join(opts, "&")
}

// DSN returns the go-sql-driver data source name.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.optionsString())
}

// Connect opens the database using sqlx and applies pool limits.
func (c MySQLConfig) Connect() (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", c.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	return db, nil
}

// ContestConfig configures the hourly contest ingestion job.
type ContestConfig struct {
	// Enabled toggles the job entirely.
	Enabled bool `yaml:"enabled"`
	// URL is the contest listing page to scrape.
	URL string `yaml:"url"`
	// Cron is the trigger schedule.
	Cron string `yaml:"cron"`
	// MentionRoleID, if set, is attached as the role mention of every
	// auto-registered contest event.
	MentionRoleID string `yaml:"mention_role_id"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the admin page and API.
	Listen string `yaml:"listen"`

	// Timezone is the IANA reference zone used to interpret all
	// user-facing date text (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone"`

	// GuildID is the Discord guild the bot serves.
	GuildID string `yaml:"guild_id"`

	// ChannelID is the destination channel for reminder notifications.
	ChannelID string `yaml:"channel_id"`

	// NotifyCron is the schedule of the reminder scan. One run per
	// minute is assumed by the lead-time window logic.
	NotifyCron string `yaml:"notify_cron"`

	// LeadTimes are the minutes-before-event thresholds at which a
	// normal-policy event fires.
	LeadTimes []int `yaml:"lead_times"`

	// OnceWindowMinutes is the width of the window inside which a
	// once-policy event fires its single reminder.
	OnceWindowMinutes int `yaml:"once_window_minutes"`

	Contest ContestConfig `yaml:"contest"`

	// BasicAuth, if non-nil, gates all admin endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`

	MySQL MySQLConfig `yaml:"mysql"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "Asia/Tokyo",
		NotifyCron:        "* * * * *",
		LeadTimes:         []int{5, 10, 15, 30, 60},
		OnceWindowMinutes: 60,
		Contest: ContestConfig{
			Enabled: true,
			URL:     "https://atcoder.jp/contests/",
			Cron:    "0 * * * *",
		},
		MySQL: MySQLConfig{
			Host:         "127.0.0.1",
			Port:         3306,
			Database:     "remindbot",
			Username:     "root",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			Options: []MySQLOption{
				{Key: "parseTime", Value: "false"},
				{Key: "charset", Value: "utf8mb4"},
			},
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.NotifyCron == "" {
		c.NotifyCron = def.NotifyCron
	}
	if len(c.LeadTimes) == 0 {
		c.LeadTimes = append([]int(nil), def.LeadTimes...)
	}
	if c.OnceWindowMinutes <= 0 {
		c.OnceWindowMinutes = def.OnceWindowMinutes
	}
	if c.Contest.URL == "" {
		c.Contest.URL = def.Contest.URL
	}
	if c.Contest.Cron == "" {
		c.Contest.Cron = def.Contest.Cron
	}
	if c.MySQL.Host == "" {
		c.MySQL.Host = def.MySQL.Host
	}
	if c.MySQL.Port == 0 {
		c.MySQL.Port = def.MySQL.Port
	}
	if c.MySQL.Database == "" {
		c.MySQL.Database = def.MySQL.Database
	}
	if c.MySQL.MaxOpenConns <= 0 {
		c.MySQL.MaxOpenConns = def.MySQL.MaxOpenConns
	}
	if c.MySQL.MaxIdleConns <= 0 {
		c.MySQL.MaxIdleConns = def.MySQL.MaxIdleConns
	}
	if c.MySQL.Options == nil {
		c.MySQL.Options = append([]MySQLOption(nil), def.MySQL.Options...)
	}
}

// ApplyEnv overrides secret-bearing fields from the environment so they
// never need to live in the YAML file. Recognized variables:
//
//	REMINDBOT_MYSQL_USERNAME
//	REMINDBOT_MYSQL_PASSWORD
//	REMINDBOT_BASIC_AUTH_USERNAME
//	REMINDBOT_BASIC_AUTH_PASSWORD
func (c *Config) ApplyEnv() {
	if v := os.Getenv("REMINDBOT_MYSQL_USERNAME"); v != "" {
		c.MySQL.Username = v
	}
	if v := os.Getenv("REMINDBOT_MYSQL_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	u := os.Getenv("REMINDBOT_BASIC_AUTH_USERNAME")
	p := os.Getenv("REMINDBOT_BASIC_AUTH_PASSWORD")
	if u != "" && p != "" {
		c.BasicAuth = &BasicAuthConfig{Username: u, Password: p}
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created, 0600 perms) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600 perms).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remindbot-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
