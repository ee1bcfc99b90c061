// Package config loads all runtime configuration from environment variables.
//
// Secrets additionally support the *_FILE convention: if RAZORPAY_KEY_SECRET_FILE
// is set, the secret is read from that path instead of the environment. This is
// how Docker/Kubernetes secret mounts are consumed without code changes.
package config

import (
	"os"
	"strings"
)

type Config struct {
	Port     string
	MongoURI string
	MongoDB  string

	RedisAddr string

	JWTSecret string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	RabbitMQURL   string
	OrderExchange string

	EventLogPath string

	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "storefront"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", "dev-only-secret"),

		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnvFromFile("RAZORPAY_KEY_SECRET_FILE", "RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnvFromFile("RAZORPAY_WEBHOOK_SECRET_FILE", "RAZORPAY_WEBHOOK_SECRET", ""),

		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		OrderExchange: getEnv("ORDER_EXCHANGE", "orders_exchange"),

		EventLogPath: getEnv("EVENT_LOG_PATH", "./data/payment_events.db"),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnvFromFile("ADMIN_PASSWORD_FILE", "ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFromFile(fileKey, envKey, fallback string) string {
	if path := os.Getenv(fileKey); path != "" {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, fallback)
}
