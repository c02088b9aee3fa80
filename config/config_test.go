package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, yamlData string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))
	return path
}

func Test_LoadConfigFromYAML(t *testing.T) {
	tests := []struct {
		name     string
		yamlData string
		want     Config
		wantErr  bool
	}{
		{
			name: "should load full config without error",
			yamlData: `
logger:
  level: warn
pool_config:
  floor: 32
  max_concurrent: 8
  acquire_timeout: 10s
  replenish_interval: 2s
fetch_config:
  max_attempts: 3
  deadline: 2m
directory_config:
  url: https://directory.example.net/endpoints
  timeout: 5s
penalty_store_config:
  file_path: /var/lib/cdn/penalties.json
`,
			want: Config{
				Logger: LoggerConfig{Level: "warn"},
				Pool: PoolConfig{
					Floor:             32,
					MaxConcurrent:     8,
					AcquireTimeout:    10 * time.Second,
					ReplenishInterval: 2 * time.Second,
				},
				Fetch: FetchConfig{
					MaxAttempts: 3,
					Deadline:    2 * time.Minute,
				},
				Directory: DirectoryConfig{
					URL:     "https://directory.example.net/endpoints",
					Timeout: 5 * time.Second,
				},
				PenaltyStore: PenaltyStoreConfig{
					FilePath: "/var/lib/cdn/penalties.json",
				},
			},
		},
		{
			name: "should hydrate defaults for minimal config",
			yamlData: `
directory_config:
  url: https://directory.example.net/endpoints
`,
			want: Config{
				Logger: LoggerConfig{Level: "info"},
				Directory: DirectoryConfig{
					URL:     "https://directory.example.net/endpoints",
					Timeout: 10 * time.Second,
				},
			},
		},
		{
			name: "should fail without directory url",
			yamlData: `
pool_config:
  floor: 8
`,
			wantErr: true,
		},
		{
			name: "should fail on invalid log level",
			yamlData: `
logger:
  level: loud
directory_config:
  url: https://directory.example.net/endpoints
`,
			wantErr: true,
		},
		{
			name: "should fail on negative pool floor",
			yamlData: `
directory_config:
  url: https://directory.example.net/endpoints
pool_config:
  floor: -1
`,
			wantErr: true,
		},
		{
			name: "should fail when both store backends are set",
			yamlData: `
directory_config:
  url: https://directory.example.net/endpoints
penalty_store_config:
  file_path: /var/lib/cdn/penalties.json
  postgres_connection_string: postgres://cdn@localhost/cdn
`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadConfigFromYAML(writeConfigFile(t, tc.yamlData))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func Test_LoadConfigFromYAML_MissingFile(t *testing.T) {
	_, err := LoadConfigFromYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestPoolConfigConversion(t *testing.T) {
	cfg := Config{
		Pool: PoolConfig{
			Floor:             16,
			MaxConcurrent:     4,
			AcquireTimeout:    20 * time.Second,
			ReplenishInterval: 3 * time.Second,
		},
		Fetch: FetchConfig{MaxAttempts: 7, Deadline: time.Minute},
	}

	poolConfig := cfg.PoolConfig()
	require.Equal(t, 16, poolConfig.Floor)
	require.Equal(t, 4, poolConfig.MaxConcurrent)
	require.Equal(t, 20*time.Second, poolConfig.AcquireTimeout)
	require.Equal(t, 3*time.Second, poolConfig.ReplenishInterval)

	fetcherConfig := cfg.FetcherConfig()
	require.Equal(t, 7, fetcherConfig.MaxAttempts)
	require.Equal(t, time.Minute, fetcherConfig.Deadline)
}
