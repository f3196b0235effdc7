package config

import (
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr         string `mapstructure:"addr"`
		ReadTimeout  int    `mapstructure:"read_timeout_seconds"`
		WriteTimeout int    `mapstructure:"write_timeout_seconds"`
	} `mapstructure:"server"`
	DB struct {
		Enable   bool   `mapstructure:"enable"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Workflow struct {
		QualityThreshold          float64 `mapstructure:"quality_threshold"`
		MaxIterations             int     `mapstructure:"max_iterations"`
		StageTimeoutSeconds       int     `mapstructure:"stage_timeout_seconds"`
		MaxConcurrent             int     `mapstructure:"max_concurrent"`
		FallbackOnReflectionError bool    `mapstructure:"fallback_on_reflection_error"`
	} `mapstructure:"workflow"`
	MarketData struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"market_data"`
}

// LoadConfig loads the configuration from a file and the environment.
// Missing config files are tolerated; defaults cover every key.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)

	viper.SetDefault("db.enable", false)
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.name", "credit_risk")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("workflow.quality_threshold", 0.8)
	viper.SetDefault("workflow.max_iterations", 5)
	viper.SetDefault("workflow.stage_timeout_seconds", 60)
	viper.SetDefault("workflow.max_concurrent", 0)
	viper.SetDefault("workflow.fallback_on_reflection_error", true)

	viper.SetDefault("market_data.url", "http://localhost:3001")
}
