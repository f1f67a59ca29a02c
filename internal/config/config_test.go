package config_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmcpi/efiboot/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	conf, err := config.NewConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "/sys/firmware/efi/efivars", conf.EfivarsPath)
	assert.Empty(t, conf.FirmwareVars)
	assert.False(t, conf.Debug)
	assert.Equal(t, "text", conf.Output)
	assert.Equal(t, "text", conf.LogFormat)
	assert.Equal(t, 9420, conf.Port)
	assert.Equal(t, ".rdii-config", conf.Companion.Suffix)
	assert.Equal(t, "/boot/efi", conf.Companion.ESPMount)
}

func TestNewConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "efiboot.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
efivars_path: /tmp/efivars
output: json
companion:
  suffix: .cfg
`), 0o644))

	t.Setenv("EFIBOOT_OUTPUT", "yaml")
	t.Setenv("EFIBOOT_COMPANION_ESP_MOUNT", "/efi")

	conf, err := config.NewConfig(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/efivars", conf.EfivarsPath)
	assert.Equal(t, "yaml", conf.Output)
	assert.Equal(t, ".cfg", conf.Companion.Suffix)
	assert.Equal(t, "/efi", conf.Companion.ESPMount)
}

func TestNewConfigErrors(t *testing.T) {
	_, err := config.NewConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	t.Setenv("EFIBOOT_OUTPUT", "xml")
	_, err = config.NewConfig(viper.New(), "")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestValidate(t *testing.T) {
	valid := config.Config{EfivarsPath: "/sys/firmware/efi/efivars", Output: "json", LogFormat: "json", Port: 80}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{name: "Bad log format", mutate: func(c *config.Config) { c.LogFormat = "logfmt" }},
		{name: "Negative port", mutate: func(c *config.Config) { c.Port = -1 }},
		{name: "Port too large", mutate: func(c *config.Config) { c.Port = 70000 }},
		{name: "No variable source", mutate: func(c *config.Config) { c.EfivarsPath = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := config.NewLogger(&buf, "json", false)
	log.V(1).Info("hidden")
	log.Info("shown", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "value", entry["key"])

	buf.Reset()
	log = config.NewLogger(&buf, "text", true)
	log.V(1).Info("debug message")
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
