package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Update  UpdateConfig  `mapstructure:"update"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Storage StorageConfig `mapstructure:"storage"`
}

type AppConfig struct {
	// Version is the running build's version string, e.g. "Stable-1.2-Apple".
	Version string `mapstructure:"version"`
}

type UpdateConfig struct {
	ReleasesURL     string        `mapstructure:"releases_url"`
	ReleasesPageURL string        `mapstructure:"releases_page_url"`
	ActionsPageURL  string        `mapstructure:"actions_page_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type ChatConfig struct {
	// Generation can take minutes, so the request timeout is deliberately long.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type StorageConfig struct {
	UseInMemory bool   `mapstructure:"use_in_memory"`
	Path        string `mapstructure:"path"`
	KeyPath     string `mapstructure:"key_path"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("app.version", "nightly-000000")
	v.SetDefault("update.releases_url", "https://api.github.com/repos/HOE-Team/OpenChat/releases")
	v.SetDefault("update.releases_page_url", "https://github.com/HOE-Team/OpenChat/releases")
	v.SetDefault("update.actions_page_url", "https://github.com/HOE-Team/OpenChat/actions")
	v.SetDefault("update.request_timeout", 15*time.Second)
	v.SetDefault("update.connect_timeout", 10*time.Second)
	v.SetDefault("chat.request_timeout", 300*time.Second)
	v.SetDefault("chat.connect_timeout", 60*time.Second)
	v.SetDefault("storage.use_in_memory", false)
	v.SetDefault("storage.path", "openchat.db")
	v.SetDefault("storage.key_path", "openchat.key")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Build pipelines stamp the real version through the environment.
	if version := v.GetString("OPENCHAT_VERSION"); version != "" {
		config.App.Version = version
	}

	return &config, nil
}
