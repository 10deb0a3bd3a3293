package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
		// BaseURL is the public URL of this service, used to build
		// webhook callback and checkout redirect addresses.
		BaseURL string `mapstructure:"baseUrl"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Asaas struct {
		BaseURL      string `mapstructure:"baseUrl"`
		APIKey       string `mapstructure:"apiKey"`
		WebhookToken string `mapstructure:"webhookToken"`
	} `mapstructure:"asaas"`
	Email struct {
		BaseURL     string `mapstructure:"baseUrl"`
		APIKey      string `mapstructure:"apiKey"`
		FromAddress string `mapstructure:"fromAddress"`
		FromName    string `mapstructure:"fromName"`
	} `mapstructure:"email"`
	Admin struct {
		APIKey string `mapstructure:"apiKey"`
	} `mapstructure:"admin"`
	Billing struct {
		// GraceDays is how long a tenant may stay overdue before
		// suspension. Defaults to 7.
		GraceDays int `mapstructure:"graceDays"`
		// ReconcileSchedule is the cron spec for the billing cycle job.
		ReconcileSchedule string `mapstructure:"reconcileSchedule"`
	} `mapstructure:"billing"`
}

// LoadConfig reads configuration from config.yml and the environment.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// Missing .env is fine outside production, env vars still apply.
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("billing.graceDays", 7)
	viper.SetDefault("billing.reconcileSchedule", "@hourly")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
