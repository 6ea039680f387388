package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL             string `mapstructure:"DB_URL"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	MQTTBroker        string `mapstructure:"MQTT_BROKER"`
	MQTTClientID      string `mapstructure:"MQTT_CLIENT_ID"`
	HTTPAddr          string `mapstructure:"HTTP_ADDR"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	LogFormat         string `mapstructure:"LOG_FORMAT"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	CameraAPIBaseURL  string `mapstructure:"CAMERA_API_BASE_URL"`
	CameraAPIToken    string `mapstructure:"CAMERA_API_TOKEN"`
	PushAPIBaseURL    string `mapstructure:"PUSH_API_BASE_URL"`
	WorkerConcurrency int    `mapstructure:"WORKER_CONCURRENCY"`
	MDNSHostname      string `mapstructure:"MDNS_HOSTNAME"`
}

// LoadConfig reads configuration from .env, config file, or env vars
func LoadConfig() (*Config, error) {
	// .env is optional; env vars win either way
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("HTTP_ADDR", ":5069")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("MQTT_CLIENT_ID", "sentinel-backend")
	viper.SetDefault("WORKER_CONCURRENCY", 10)

	cfg := &Config{
		DBURL:             viper.GetString("DB_URL"),
		RedisAddr:         viper.GetString("REDIS_ADDR"),
		RedisPassword:     viper.GetString("REDIS_PASSWORD"),
		MQTTBroker:        viper.GetString("MQTT_BROKER"),
		MQTTClientID:      viper.GetString("MQTT_CLIENT_ID"),
		HTTPAddr:          viper.GetString("HTTP_ADDR"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		LogFormat:         viper.GetString("LOG_FORMAT"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		CameraAPIBaseURL:  viper.GetString("CAMERA_API_BASE_URL"),
		CameraAPIToken:    viper.GetString("CAMERA_API_TOKEN"),
		PushAPIBaseURL:    viper.GetString("PUSH_API_BASE_URL"),
		WorkerConcurrency: viper.GetInt("WORKER_CONCURRENCY"),
		MDNSHostname:      viper.GetString("MDNS_HOSTNAME"),
	}
	return cfg, nil
}
