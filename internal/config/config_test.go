package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, "* * * * *", cfg.NotifyCron)
	assert.Equal(t, []int{5, 10, 15, 30, 60}, cfg.LeadTimes)
	assert.Equal(t, 60, cfg.OnceWindowMinutes)
	assert.Equal(t, "0 * * * *", cfg.Contest.Cron)
	assert.Equal(t, uint16(3306), cfg.MySQL.Port)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Listen:    "0.0.0.0:9000",
		LeadTimes: []int{1, 2},
	}
	cfg.Normalize()

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, []int{1, 2}, cfg.LeadTimes)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	orig := DefaultConfig()
	orig.GuildID = "guild-1"
	orig.ChannelID = "chan-1"
	orig.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, Save(path, orig))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestMySQLDSN(t *testing.T) {
	c := MySQLConfig{
		Host:     "db.example.com",
		Port:     3307,
		Database: "remind",
		Username: "bot",
		Password: "pw",
		Options: []MySQLOption{
			{Key: "charset", Value: "utf8mb4"},
		},
	}
	assert.Equal(t, "bot:pw@tcp(db.example.com:3307)/remind?charset=utf8mb4", c.DSN())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REMINDBOT_MYSQL_PASSWORD", "env-pw")
	t.Setenv("REMINDBOT_BASIC_AUTH_USERNAME", "env-user")
	t.Setenv("REMINDBOT_BASIC_AUTH_PASSWORD", "env-pass")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "env-pw", cfg.MySQL.Password)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "env-user", cfg.BasicAuth.Username)
}
