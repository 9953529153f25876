package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "DATA_PATH", "MODEL_SOURCE", "ORT_LIBRARY",
		"CACHE_SIZE", "HISTORY_LIMIT", "REQUEST_TIMEOUT", "LOAD_TIMEOUT", "FALLBACK",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8080 {
					t.Errorf("expected default port 8080, got %d", settings.Port)
				}
				if settings.ModelSource != "model.onnx" {
					t.Errorf("expected default model source, got %s", settings.ModelSource)
				}
				if settings.DataPath != "" {
					t.Errorf("expected empty data path, got %s", settings.DataPath)
				}
				if settings.CacheSize != 1024 {
					t.Errorf("expected default cache size 1024, got %d", settings.CacheSize)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default request timeout 5s, got %v", settings.RequestTimeout)
				}
				if settings.Fallback {
					t.Error("fallback must default to off")
				}
			},
		},
		{
			name: "env overrides",
			envVars: map[string]string{
				"PORT":            "9001",
				"MODEL_SOURCE":    "https://models.example.com/titanic.onnx",
				"DATA_PATH":       "/var/lib/predictor",
				"CACHE_SIZE":      "64",
				"HISTORY_LIMIT":   "50",
				"REQUEST_TIMEOUT": "2s",
				"FALLBACK":        "true",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 9001 {
					t.Errorf("expected port 9001, got %d", settings.Port)
				}
				if settings.ModelSource != "https://models.example.com/titanic.onnx" {
					t.Errorf("unexpected model source %s", settings.ModelSource)
				}
				if settings.CacheSize != 64 {
					t.Errorf("expected cache size 64, got %d", settings.CacheSize)
				}
				if settings.HistoryLimit != 50 {
					t.Errorf("expected history limit 50, got %d", settings.HistoryLimit)
				}
				if !settings.Fallback {
					t.Error("expected fallback enabled")
				}
			},
		},
		{
			name:    "invalid port",
			envVars: map[string]string{"PORT": "80"},
			wantErr: true,
		},
		{
			name:    "invalid history limit",
			envVars: map[string]string{"HISTORY_LIMIT": "0"},
			wantErr: true,
		},
		{
			name:    "request timeout too long",
			envVars: map[string]string{"REQUEST_TIMEOUT": "5m"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearConfigEnv(t)

	config := `
server:
  port: 9090
  requestTimeout: 3s
ml:
  modelSource: models/titanic.onnx
  cacheSize: 256
  loadTimeout: 1m
  fallback: true
system:
  dataPath: /tmp/predictor
  historyLimit: 25
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settings.Port != 9090 {
		t.Errorf("expected port 9090, got %d", settings.Port)
	}
	if settings.ModelSource != "models/titanic.onnx" {
		t.Errorf("unexpected model source %s", settings.ModelSource)
	}
	if settings.RequestTimeout != 3*time.Second {
		t.Errorf("expected request timeout 3s, got %v", settings.RequestTimeout)
	}
	if settings.LoadTimeout != time.Minute {
		t.Errorf("expected load timeout 1m, got %v", settings.LoadTimeout)
	}
	if settings.HistoryLimit != 25 {
		t.Errorf("expected history limit 25, got %d", settings.HistoryLimit)
	}
	if !settings.Fallback {
		t.Error("expected fallback enabled")
	}
}

func TestLoadFromYAML_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)

	config := `
server:
  port: 9090
ml:
  modelSource: models/titanic.onnx
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9999")
	t.Setenv("MODEL_SOURCE", "override.onnx")

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Port != 9999 {
		t.Errorf("expected env override port 9999, got %d", settings.Port)
	}
	if settings.ModelSource != "override.onnx" {
		t.Errorf("expected env override model source, got %s", settings.ModelSource)
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromYAML_Malformed(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
