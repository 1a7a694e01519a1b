package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "neuropathx", cfg.App.Name)
	assert.Equal(t, 299, cfg.Model.InputSize)
	assert.Equal(t, PreprocessRescale, cfg.Model.Preprocess)
	assert.Equal(t, []string{"glioma", "meningioma", "notumor", "pituitary"}, cfg.Model.ClassLabels)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("MODEL_PREPROCESS", PreprocessCentered)
	t.Setenv("MODEL_CLASS_LABELS", "a, b ,c")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, PreprocessCentered, cfg.Model.Preprocess)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Model.ClassLabels)
}

func TestLoad_RejectsUnknownPreprocess(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("MODEL_PREPROCESS", "imagenet")

	_, err := Load()
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "scans"
	cfg.MySQL.Password = "secret"

	assert.Equal(t,
		"scans:secret@tcp(127.0.0.1:3306)/neuropathx?parseTime=true&loc=Local&charset=utf8mb4",
		cfg.MySQLDSN())
}
