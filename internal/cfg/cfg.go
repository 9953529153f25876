package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port           int
	DataPath       string
	ModelSource    string
	OrtLibrary     string
	CacheSize      int
	HistoryLimit   int
	RequestTimeout time.Duration
	LoadTimeout    time.Duration
	Fallback       bool
}

type ConfigFile struct {
	Server struct {
		Port           int    `yaml:"port"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	ML struct {
		ModelSource string `yaml:"modelSource"`
		OrtLibrary  string `yaml:"ortLibrary"`
		CacheSize   int    `yaml:"cacheSize"`
		LoadTimeout string `yaml:"loadTimeout"`
		Fallback    bool   `yaml:"fallback"`
	} `yaml:"ml"`

	System struct {
		DataPath     string `yaml:"dataPath"`
		HistoryLimit int    `yaml:"historyLimit"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 5 * time.Second
	}

	loadTimeout, err := time.ParseDuration(config.ML.LoadTimeout)
	if err != nil {
		loadTimeout = 30 * time.Second
	}

	settings := Settings{
		Port:           getIntFromEnvOrConfig("PORT", config.Server.Port, 8080),
		DataPath:       getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelSource:    getEnvOrDefault("MODEL_SOURCE", config.ML.ModelSource),
		OrtLibrary:     getEnvOrDefault("ORT_LIBRARY", config.ML.OrtLibrary),
		CacheSize:      getIntFromEnvOrConfig("CACHE_SIZE", config.ML.CacheSize, 1024),
		HistoryLimit:   getIntFromEnvOrConfig("HISTORY_LIMIT", config.System.HistoryLimit, 100),
		RequestTimeout: requestTimeout,
		LoadTimeout:    loadTimeout,
		Fallback:       getBoolFromEnvOrConfig("FALLBACK", config.ML.Fallback),
	}
	if settings.ModelSource == "" {
		settings.ModelSource = "model.onnx"
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:           getIntOrDefault("PORT", 8080),
		DataPath:       os.Getenv("DATA_PATH"), // optional, empty disables history
		ModelSource:    getEnvOrDefault("MODEL_SOURCE", "model.onnx"),
		OrtLibrary:     os.Getenv("ORT_LIBRARY"),
		CacheSize:      getIntOrDefault("CACHE_SIZE", 1024),
		HistoryLimit:   getIntOrDefault("HISTORY_LIMIT", 100),
		RequestTimeout: getDurationOrDefault("REQUEST_TIMEOUT", 5*time.Second),
		LoadTimeout:    getDurationOrDefault("LOAD_TIMEOUT", 30*time.Second),
		Fallback:       getBoolOrDefault("FALLBACK", false),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelSource == "" {
		return fmt.Errorf("model source cannot be empty")
	}
	if settings.Port < 1024 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535, got %d", settings.Port)
	}
	if settings.CacheSize < 0 || settings.CacheSize > 1_000_000 {
		return fmt.Errorf("cache size must be between 0 and 1000000, got %d", settings.CacheSize)
	}
	if settings.HistoryLimit <= 0 || settings.HistoryLimit > 10000 {
		return fmt.Errorf("history limit must be between 1 and 10000, got %d", settings.HistoryLimit)
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.LoadTimeout < time.Second || settings.LoadTimeout > 10*time.Minute {
		return fmt.Errorf("load timeout must be between 1s and 10m, got %v", settings.LoadTimeout)
	}
	return nil
}
