package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database"`

	// MongoDB Configuration (avatar storage)
	MongoDB MongoConfig `json:"mongodb"`

	// Encryption Configuration
	Encryption EncryptionConfig `json:"encryption"`

	// Auth Configuration
	Auth AuthConfig `json:"auth"`

	// Rate Limit Configuration
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port            string `json:"port"`
	Host            string `json:"host"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	CORSAllowOrigin string `json:"cors_allow_origin"`
	Environment     string `json:"environment"` // development, staging, production
}

// DatabaseConfig contains MySQL connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// MongoConfig contains MongoDB connection configuration
type MongoConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// EncryptionConfig controls how per-conversation message keys are derived.
//
// MasterKey empty + InsecureDevKeys false is a startup error: the fallback
// derivation is guessable and must be opted into explicitly.
type EncryptionConfig struct {
	MasterKey       string `json:"-"`
	InsecureDevKeys bool   `json:"insecure_dev_keys"`
}

// AuthConfig contains JWT configuration. Token issuance is wired but
// disabled by default; request identity comes from the X-User-ID header.
type AuthConfig struct {
	JWTSecret  string `json:"-"`
	JWTEnabled bool   `json:"jwt_enabled"`
}

// RateLimitConfig contains request throttling thresholds (requests/second).
type RateLimitConfig struct {
	GeneralRPS  int `json:"general_rps"`
	MessagesRPS int `json:"messages_rps"`
	Burst       int `json:"burst"`
}

// LoadConfig reads configuration from the environment, loading a local .env
// file first when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("MYSQL_HOST", "localhost"),
			Port:         getEnv("MYSQL_PORT", "3306"),
			Username:     getEnv("MYSQL_USER", "securechat"),
			Password:     getEnv("MYSQL_PASSWORD", "securechat123"),
			DatabaseName: getEnv("MYSQL_DATABASE", "securechat"),
			MaxOpenConns: getEnvInt("MYSQL_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoConfig{
			Host:     getEnv("MONGO_HOST", "localhost"),
			Port:     getEnv("MONGO_PORT", "27017"),
			Username: getEnv("MONGO_USER", "admin"),
			Password: getEnv("MONGO_PASSWORD", "admin123"),
			Database: getEnv("MONGO_DATABASE", "securechat"),
		},
		Encryption: EncryptionConfig{
			MasterKey:       getEnv("MESSAGE_MASTER_KEY", ""),
			InsecureDevKeys: getEnvBool("INSECURE_DEV_KEYS", false),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTEnabled: getEnvBool("AUTH_JWT_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:  getEnvInt("RATE_LIMIT_RPS", 50),
			MessagesRPS: getEnvInt("RATE_LIMIT_MESSAGES_RPS", 10),
			Burst:       getEnvInt("RATE_LIMIT_BURST", 20),
		},
	}
}

// Validate rejects configurations that must not reach production: an absent
// master key is only allowed when insecure dev keys were opted into.
func (cfg *Config) Validate() error {
	if cfg.Encryption.MasterKey == "" && !cfg.Encryption.InsecureDevKeys {
		return fmt.Errorf("MESSAGE_MASTER_KEY is not set; set it or opt into INSECURE_DEV_KEYS=true for local development")
	}
	if cfg.Auth.JWTEnabled && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_ENABLED is true but JWT_SECRET is not set")
	}
	return nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.Username != "" && cfg.MongoDB.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s",
			cfg.MongoDB.Username, cfg.MongoDB.Password, cfg.MongoDB.Host, cfg.MongoDB.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s", cfg.MongoDB.Host, cfg.MongoDB.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		log.Printf("Warning: invalid boolean for %s, using default %v", key, fallback)
	}
	return fallback
}
