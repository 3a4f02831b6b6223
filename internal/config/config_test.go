package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
portal_url: https://portal.example/login
username: user
password: secret
day_meter_id: "300001"
night_meter_id: "199996"
raw_download_dir: /tmp/raw
work_dir: /tmp/work
start_date: 01-01-2023
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "300001", cfg.DayMeterID)
	assert.Equal(t, "199996", cfg.NightMeterID)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.GetStartDate())
	assert.True(t, cfg.GetHeadless(), "headless defaults to true")
	assert.Equal(t, "window.yaml", cfg.GetWindowStorePath())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MissingCredentials(t *testing.T) {
	content := `
day_meter_id: "300001"
night_meter_id: "199996"
raw_download_dir: /tmp/raw
work_dir: /tmp/work
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username and password")
}

func TestLoad_BadStartDate(t *testing.T) {
	content := strings.Replace(validConfig, "01-01-2023", "2023-01-01", 1)

	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_date")
}

func TestLoad_HeadlessOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+"headless: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.GetHeadless())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	orig, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.NoError(t, Save(path, orig))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}
