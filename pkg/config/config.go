package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config keys,
// e.g. TAXONLINE_API_BASE_URL for api.base_url.
const EnvPrefix = "TAXONLINE"

var configDir string
var configFilePath string
var sessionPath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\taxonline\cli
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "taxonline", "cli"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/taxonline/cli
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "taxonline", "cli"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "TaxOnline", "cli", "config.toml")}
	}

	return []string{
		"/etc/taxonline/cli/config.toml",
		"/usr/local/etc/taxonline/cli/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	sessionPath = filepath.Join(configDir, "session.json")

	// A missing .env is the common case.
	_ = godotenv.Load()

	viper.Reset()
	viper.SetConfigType("toml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// System config first, user config overrides it
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	viper.SetConfigFile(configFilePath)
	_ = viper.MergeInConfig()

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8000/api")
	viper.SetDefault("api.ws_url", "ws://localhost:8000/ws")
	viper.SetDefault("api.timeout", 30)

	viper.SetDefault("stream.reconnect_delay_ms", 3000)
	viper.SetDefault("stream.max_reconnect_attempts", -1)
	viper.SetDefault("stream.buffer_size", 200)

	viper.SetDefault("output.format", "table")

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault("output.download_dir", filepath.Join(home, "Downloads"))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "taxonline-cli.log"))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "output.download_dir" || key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration reads an integer key expressed in milliseconds.
func GetDuration(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Millisecond
}

// Set overrides a value for the current process only.
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string configuration value and writes the user config file
func SetString(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfigAs(configFilePath)
}

// Settings returns every resolved key, for display.
func Settings() map[string]interface{} {
	return viper.AllSettings()
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetSessionPath returns the path to the persisted session snapshot
func GetSessionPath() string {
	return sessionPath
}
