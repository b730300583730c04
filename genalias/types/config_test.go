package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netalias/genalias/shared-lib/http/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genalias.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cm := NewConfigManager("", map[string]interface{}{"pages.repoUrl": "https://github.com/example/lists.git"})
	cfg, err := cm.LoadAndValidateConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultDumpURL, cfg.DumpURL)
	assert.Equal(t, "cp1251", cfg.Encoding)
	assert.Equal(t, 0, cfg.DNS.Jobs)
	assert.Equal(t, 10, cfg.DNS.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.DNS.RetryDelay)
	assert.Equal(t, DefaultBranch, cfg.Pages.Branch)
	assert.Equal(t, DefaultIPv4File, cfg.Pages.IPv4File)
	assert.Equal(t, DefaultIPv6File, cfg.Pages.IPv6File)
	assert.True(t, cfg.Pages.Push)
	assert.Equal(t, auth.AuthTypeNone, cfg.Download.Auth.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigMissingFileIsIgnored(t *testing.T) {
	cm := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"), map[string]interface{}{
		"pages.repoUrl": "https://github.com/example/lists.git",
	})
	_, err := cm.LoadAndValidateConfig()
	require.NoError(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
dumpUrl: https://mirror.example.com/dump.csv.gz
dns:
  jobs: 32
  retryDelay: 1s
download:
  auth:
    type: bearer
    token: abc
pages:
  repoUrl: https://github.com/example/lists.git
  push: false
log:
  format: json
`)
	cfg, err := NewConfigManager(path, nil).LoadAndValidateConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.com/dump.csv.gz", cfg.DumpURL)
	assert.Equal(t, 32, cfg.DNS.Jobs)
	assert.Equal(t, time.Second, cfg.DNS.RetryDelay)
	assert.Equal(t, auth.AuthTypeBearer, cfg.Download.Auth.Type)
	assert.Equal(t, "abc", cfg.Download.Auth.Token)
	assert.False(t, cfg.Pages.Push)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
pages:
  repoUrl: https://github.com/example/lists.git
dns:
  jobs: 4
`)
	t.Setenv("GENALIAS_DNS_JOBS", "16")
	t.Setenv("GENALIAS_PAGES_TOKEN", "from-env")

	cfg, err := NewConfigManager(path, nil).LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.DNS.Jobs)
	assert.Equal(t, "from-env", cfg.Pages.Token)

	cfg, err = NewConfigManager(path, map[string]interface{}{"dns.jobs": 2}).LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.DNS.Jobs)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		wantErr   string
	}{
		{
			name:      "missing repository",
			overrides: map[string]interface{}{},
			wantErr:   "RepoURL",
		},
		{
			name: "bad dump url",
			overrides: map[string]interface{}{
				"pages.repoUrl": "https://github.com/example/lists.git",
				"dumpUrl":       "not a url",
			},
			wantErr: "DumpURL",
		},
		{
			name: "negative jobs",
			overrides: map[string]interface{}{
				"pages.repoUrl": "https://github.com/example/lists.git",
				"dns.jobs":      -1,
			},
			wantErr: "Jobs",
		},
		{
			name: "same output files",
			overrides: map[string]interface{}{
				"pages.repoUrl":  "https://github.com/example/lists.git",
				"pages.ipv6File": DefaultIPv4File,
			},
			wantErr: "IPv6File",
		},
		{
			name: "unknown log level",
			overrides: map[string]interface{}{
				"pages.repoUrl": "https://github.com/example/lists.git",
				"log.level":     "verbose",
			},
			wantErr: "Level",
		},
		{
			name: "bearer auth without token",
			overrides: map[string]interface{}{
				"pages.repoUrl":      "https://github.com/example/lists.git",
				"download.auth.type": "bearer",
			},
			wantErr: "download.auth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigManager("", tt.overrides).LoadAndValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := writeConfig(t, "dns: [unclosed\n")
	_, err := NewConfigManager(path, nil).LoadAndValidateConfig()
	assert.ErrorContains(t, err, "failed to read config file")
}
