package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv(`RXCOPY_CHUNK_SIZE`, `4096`)
	path := writeFile(t, `rxcopy.yaml`, `
copy:
  chunk_size: ${RXCOPY_CHUNK_SIZE}
  progress_interval: ${RXCOPY_PROGRESS:-250ms}
  buffer_size: 4
log:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Copy.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Copy.ProgressInterval)
	assert.Equal(t, 4, cfg.Copy.BufferSize)
	assert.Equal(t, int64(defaultMaxConcurrency), cfg.Copy.MaxConcurrency, "defaults retained")
	assert.Equal(t, `debug`, cfg.Log.Level)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	for name, tc := range map[string]struct {
		file    string
		content string
	}{
		`extension`: {`rxcopy.json`, `{}`},
		`yaml`:      {`rxcopy.yaml`, `copy: [`},
		`chunk`:     {`rxcopy.yaml`, "copy:\n  chunk_size: 0\n"},
		`interval`:  {`rxcopy.yaml`, "copy:\n  progress_interval: -1s\n"},
		`buffer`:    {`rxcopy.yaml`, "copy:\n  buffer_size: -1\n"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromFile(writeFile(t, tc.file, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFromFile(filepath.Join(t.TempDir(), `missing.yaml`))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultChunkSize, cfg.Copy.ChunkSize)
	assert.Equal(t, defaultProgressInterval, cfg.Copy.ProgressInterval)
	assert.Equal(t, defaultLogLevel, cfg.Log.Level)
}

func TestLoadEnvFiles(t *testing.T) {
	const key = `RXCOPY_TEST_ENV_VALUE`
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	present := writeFile(t, `.env`, key+"=from-file\n")
	loaded, err := LoadEnvFiles([]string{filepath.Join(t.TempDir(), `.env.missing`), present})
	require.NoError(t, err)
	assert.Equal(t, []string{present}, loaded)
	assert.Equal(t, `from-file`, os.Getenv(key))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv(`RXCOPY_SET`, `value`)
	os.Unsetenv(`RXCOPY_UNSET`)

	assert.Equal(t, `a: value`, substituteEnvVars(`a: ${RXCOPY_SET}`))
	assert.Equal(t, `a: value`, substituteEnvVars(`a: ${RXCOPY_SET:-other}`))
	assert.Equal(t, `a: other`, substituteEnvVars(`a: ${RXCOPY_UNSET:-other}`))
	assert.Equal(t, `a: `, substituteEnvVars(`a: ${RXCOPY_UNSET}`))
}
