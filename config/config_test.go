package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEnvProvider implements EnvProvider for testing
type MockEnvProvider struct {
	envVars map[string]string
}

func NewMockEnvProvider(envVars map[string]string) *MockEnvProvider {
	if envVars == nil {
		envVars = make(map[string]string)
	}
	return &MockEnvProvider{envVars: envVars}
}

func (m *MockEnvProvider) Getenv(key string) string {
	return m.envVars[key]
}

const testKey = "nQbG5l9P8YzM2K8vH3FrT1cE4qL7jN6uR0sX9wB2dA8="

func baseEnv() map[string]string {
	return map[string]string{
		"DEMOS_BASE_HOST":      "example.com",
		"DEMOS_ENCRYPTION_KEY": testKey,
	}
}

func TestNewConfigWithEnv_Defaults(t *testing.T) {
	cfg, err := NewConfigWithEnv(NewMockEnvProvider(baseEnv()), "", "")
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.BaseHost)
	assert.Equal(t, 300*time.Second, cfg.KeepAliveTimeout)
	assert.Equal(t, 30*time.Second, cfg.LeaseTTL)
	assert.Equal(t, 60*time.Second, cfg.KeyTTL)
	assert.Equal(t, 20000, cfg.PortRangeStart)
	assert.Equal(t, 30000, cfg.PortRangeEnd)
	assert.Equal(t, "/etc/nginx/sites", cfg.VhostDir)
	assert.Equal(t, "/etc/ssh/sshd_config.d/user.d", cfg.SSHDropInDir)
	assert.Equal(t, filepath.Join("/var/lib/demos", "demos.db"), cfg.DatabasePath)
	assert.Equal(t, CacheBackendDatabase, cfg.CacheBackend)
	assert.Equal(t, "info", cfg.GetLogLevel())
}

func TestNewConfigWithEnv_LegacyVariables(t *testing.T) {
	env := map[string]string{
		"HTTP_HOST":            "Demo.Example.ORG.",
		"KEEP_ALIVE_TIMEOUT":   "120",
		"DEMOS_ENCRYPTION_KEY": testKey,
	}
	cfg, err := NewConfigWithEnv(NewMockEnvProvider(env), "", "")
	require.NoError(t, err)

	assert.Equal(t, "demo.example.org", cfg.BaseHost)
	assert.Equal(t, 2*time.Minute, cfg.KeepAliveTimeout)
}

func TestNewConfigWithEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["DEMOS_KEEP_ALIVE_TIMEOUT"] = "45s"
	env["DEMOS_USERNAME_EXCLUDE_LIST"] = "root, git ,"
	env["DEMOS_CACHE_BACKEND"] = "memory"
	env["DEMOS_HTTP_PORT"] = "9000"
	env["DEMOS_DATA_DIR"] = "/srv/demos"

	cfg, err := NewConfigWithEnv(NewMockEnvProvider(env), "", "")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.KeepAliveTimeout)
	assert.Equal(t, []string{"root", "git"}, cfg.UsernameExcludeList)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "/srv/demos/demos.db", cfg.DatabasePath)
}

func TestNewConfigWithEnv_YAMLFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "demos.yaml")

	yamlContent := `
base_host: yaml.example.com
keep_alive_timeout: 10m
port_range_start: 40000
port_range_end: 40010
subdomain_exclude_list: [www, "admin-*"]
cache_backend: memory
log_level: debug
encryption_key: ` + testKey + `
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	// Environment wins over the file
	env := map[string]string{"DEMOS_LOG_LEVEL": "warning"}
	cfg, err := NewConfigWithEnv(NewMockEnvProvider(env), configPath, "")
	require.NoError(t, err)

	assert.Equal(t, "yaml.example.com", cfg.BaseHost)
	assert.Equal(t, 10*time.Minute, cfg.KeepAliveTimeout)
	assert.Equal(t, 40000, cfg.PortRangeStart)
	assert.Equal(t, 40010, cfg.PortRangeEnd)
	assert.Equal(t, []string{"www", "admin-*"}, cfg.SubdomainExcludeList)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, "warning", cfg.LogLevel)
}

func TestNewConfigWithEnv_MissingFile(t *testing.T) {
	_, err := NewConfigWithEnv(NewMockEnvProvider(baseEnv()), "/nonexistent/demos.yaml", "")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestNewConfigWithEnv_MissingDotenvIsIgnored(t *testing.T) {
	_, err := NewConfigWithEnv(NewMockEnvProvider(baseEnv()), "", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestNewConfigWithEnv_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(env map[string]string)
		wantErr string
	}{
		{
			name:    "missing base host",
			mutate:  func(env map[string]string) { delete(env, "DEMOS_BASE_HOST") },
			wantErr: "base host is required",
		},
		{
			name:    "missing encryption key",
			mutate:  func(env map[string]string) { delete(env, "DEMOS_ENCRYPTION_KEY") },
			wantErr: "encryption key is required",
		},
		{
			name:    "invalid log level",
			mutate:  func(env map[string]string) { env["DEMOS_LOG_LEVEL"] = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid cache backend",
			mutate:  func(env map[string]string) { env["DEMOS_CACHE_BACKEND"] = "redis" },
			wantErr: "invalid cache backend",
		},
		{
			name:    "invalid http port",
			mutate:  func(env map[string]string) { env["DEMOS_HTTP_PORT"] = "70000" },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "non-positive keep-alive",
			mutate:  func(env map[string]string) { env["DEMOS_KEEP_ALIVE_TIMEOUT"] = "0s" },
			wantErr: "keep-alive timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.mutate(env)
			_, err := NewConfigWithEnv(NewMockEnvProvider(env), "", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
