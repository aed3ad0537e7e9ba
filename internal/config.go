package internal

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/pkg/logger"
)

type PageDbConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir  string `mapstructure:"workdir"`
		PageSize int    `mapstructure:"page_size"`
		NumPages int    `mapstructure:"num_pages"`
	} `mapstructure:"storage"`

	Log logger.Config `mapstructure:"log"`
}

// LoadConfig reads a YAML config file, filling unset keys with defaults.
func LoadConfig(path string) (*PageDbConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app_name", "pagedb")
	v.SetDefault("storage.workdir", "./pagedb-data")
	v.SetDefault("storage.page_size", storage.DefaultPageSize)
	v.SetDefault("storage.num_pages", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "stderr")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg PageDbConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig(workdir string) *PageDbConfig {
	cfg := &PageDbConfig{AppName: "pagedb"}
	cfg.Storage.Workdir = workdir
	cfg.Storage.PageSize = storage.DefaultPageSize
	cfg.Storage.NumPages = 50
	cfg.Log = logger.Config{Level: "info", Format: "json", OutputFile: "stderr"}
	return cfg
}
