package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadFromEnv(t *testing.T) {
	unsetEnv(t, "HOST", "DALLE_MODEL", "IMAGES_DIR", "STORAGE_BACKEND", "DOWNLOAD_TIMEOUT", "DALLE_API_URL")
	t.Setenv("DALLE_API_KEY", "sk-test-key")
	t.Setenv("PORT", "8081")
	t.Setenv("GENERATE_TIMEOUT", "30s")

	conf, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test-key", conf.DalleApiKey)
	assert.Equal(t, ":8081", conf.Addr())
	assert.Equal(t, "dall-e-3", conf.Model)
	assert.Equal(t, "images", conf.ImagesDir)
	assert.Equal(t, StorageFile, conf.StorageBackend)
	assert.Equal(t, 30*time.Second, conf.GenerateTimeout)
	assert.Equal(t, 60*time.Second, conf.DownloadTimeout)
	assert.Equal(t, "https://api.openai.com/v1/images/generations", conf.ApiURL)
}

func TestLoadFromFile(t *testing.T) {
	unsetEnv(t, "DALLE_API_KEY", "ENV", "HOST", "PORT", "IMAGES_DIR")
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `env: prod
listen:
  host: 127.0.0.1
  port: "9000"
dalle_api_key: sk-from-file
images_dir: /tmp/pictor-images
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", conf.Env)
	assert.Equal(t, "127.0.0.1:9000", conf.Addr())
	assert.Equal(t, "sk-from-file", conf.DalleApiKey)
	assert.Equal(t, "/tmp/pictor-images", conf.ImagesDir)
}

func TestLoadRequiresApiKey(t *testing.T) {
	unsetEnv(t, "DALLE_API_KEY")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DALLE_API_KEY", "sk-test-key")
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err := Load("")
	assert.ErrorContains(t, err, "storage_backend")
}

func TestLoadFailsOnUnreadableConfigPath(t *testing.T) {
	t.Setenv("DALLE_API_KEY", "sk-test-key")
	notDir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0644))

	_, err := Load(filepath.Join(notDir, "config.yml"))
	assert.Error(t, err)
}
