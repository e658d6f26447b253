package config

import "os"

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AdminJWTSecret string
	OTLPEndpoint   string
	ProfilePath    string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		Port:           port,
		LogLevel:       logLevel,
		DatabaseURL:    os.Getenv("DATABASE_URL"), // empty means in-memory
		RedisURL:       os.Getenv("REDIS_URL"),    // empty means in-memory conversations
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		ProfilePath:    os.Getenv("PROFILE_PATH"),
	}
}
