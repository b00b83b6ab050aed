package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	JWT     JWTConfig
	Server  ServerConfig
	SMTP    SMTPConfig
	LiteAPI LiteAPIConfig
	MinIO   MinIOConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// Enabled reports whether SMTP credentials are configured. Invitation
// delivery is skipped (and logged) when they are not.
func (c SMTPConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

type LiteAPIConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "powderplan"),
			Password: getEnv("DB_PASSWORD", "powderplan_secret"),
			Name:     getEnv("DB_NAME", "powderplan"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:        getEnvAsInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USER", ""),
			Password:    getEnv("SMTP_PASS", ""),
			FromName:    getEnv("EMAIL_FROM_NAME", "Ski Trip Planner"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", getEnv("SMTP_USER", "")),
		},
		LiteAPI: LiteAPIConfig{
			BaseURL:  getEnv("LITE_API_BASE_URL", "https://api.liteapi.travel"),
			APIKey:   getEnv("LITE_API_KEY", ""),
			Timeout:  getEnvAsDuration("LITE_API_TIMEOUT", 10*time.Second),
			CacheTTL: getEnvAsDuration("LITE_API_CACHE_TTL", time.Hour),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "powderplan"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "powderplan_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "powderplan"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
