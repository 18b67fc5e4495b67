package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CLIConfig holds the defaults of the fdstream command line tool.
type CLIConfig struct {
	ChunkSize     int    `mapstructure:"chunk_size"`
	HighWaterMark int    `mapstructure:"high_water_mark"`
	Encoding      string `mapstructure:"encoding"`
	Checksum      string `mapstructure:"checksum"`
	FileMode      uint32 `mapstructure:"file_mode"`
	LogLevel      string `mapstructure:"log_level"`
}

// LoadCLIConfig reads configPath, or cli_config.toml from ~/.fdstream and
// the working directory when configPath is empty. FDSTREAM_* environment
// variables override file values. A missing file is not an error.
func LoadCLIConfig(configPath string) (*CLIConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v, err := initViper(configPath, filepath.Join(home, ".fdstream"), "cli_config", "toml", "FDSTREAM")
	if err != nil {
		return nil, err
	}

	v.SetDefault("chunk_size", 64*1024)
	v.SetDefault("high_water_mark", 16*1024)
	v.SetDefault("encoding", "")
	v.SetDefault("checksum", "none")
	v.SetDefault("file_mode", 0o666)
	v.SetDefault("log_level", "info")

	var cfg CLIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be > 0, got %d", cfg.ChunkSize)
	}
	if cfg.HighWaterMark <= 0 {
		return nil, fmt.Errorf("high_water_mark must be > 0, got %d", cfg.HighWaterMark)
	}
	return &cfg, nil
}

func initViper(configPath, defaultDir, defaultName, defaultType, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(defaultType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDir)
		v.AddConfigPath(".")
		v.SetConfigName(defaultName)
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound {
			Error("failed to read config file", Fields{
				ConfigPath: configPath,
				FieldError: err.Error(),
			})
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
