package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigShow(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(output), &cfg))
	defaults := config.DefaultConfig()
	assert.Equal(t, defaults.Store.Key, cfg.Store.Key)
	assert.Equal(t, defaults.Effect.SolverMethod, cfg.Effect.SolverMethod)
	assert.Equal(t, defaults.Server.Port, cfg.Server.Port)

	output, err = executeCommandAndCaptureOutput(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "solver_method: svd")

	_, err = executeCommandAndCaptureOutput(t, "config", "show", "--format", "toml")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystone.yaml")

	output, err := executeCommandAndCaptureOutput(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Contains(t, written, "editor")
	assert.Contains(t, written, "server")

	loaded, err := config.NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Editor, loaded.Editor)
}

func TestConfigPaths(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, output, "Environment prefix: "+config.EnvPrefix)
}
