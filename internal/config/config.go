package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppPort string
	AppURL  string

	// Database (import history, optional)
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUsername        string
	DBPassword        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Redis (upload state and stored results, optional)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ResultTTL     time.Duration

	// Upload
	UploadMaxSize   int
	ImportTitleRows int
	TemplatePath    string

	// Upstream defaults
	CrewTimeout           time.Duration
	CrewPhoneCountryCode  string
	CrewDefaultJobColor   string
	CrewCustomerCompanyID int64
	CrewStaffPasswordMin  int

	// Processing
	WorkerConcurrency int

	// Asynq
	AsynqRedisAddr     string
	AsynqRedisPassword string
	AsynqRedisDB       int
}

// Credentials are the upstream secrets. They are read from the process
// environment on every request, never cached in Config.
type Credentials struct {
	BaseURL   string
	Token     string
	CompanyID int64
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()
	_ = godotenv.Load("../../.env") // For when running from cmd/web or cmd/worker

	cfg := &Config{
		AppName: getEnv("APP_NAME", "Crew Import"),
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "8080"),
		AppURL:  getEnv("APP_URL", "http://localhost:8080"),

		DBHost:            getEnv("DB_HOST", ""),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", "crew_import"),
		DBUsername:        getEnv("DB_USERNAME", "root"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		ResultTTL:     getEnvAsDuration("IMPORT_RESULT_TTL", 24*time.Hour),

		UploadMaxSize:   getEnvAsInt("UPLOAD_MAX_SIZE", 10485760), // 10MB
		ImportTitleRows: getEnvAsInt("IMPORT_TITLE_ROWS", 1),
		TemplatePath:    getEnv("TEMPLATE_PATH", "./public/templates"),

		CrewTimeout:           getEnvAsDuration("CREW_TIMEOUT", 30*time.Second),
		CrewPhoneCountryCode:  getEnv("CREW_PHONE_COUNTRY_CODE", "1"),
		CrewDefaultJobColor:   getEnv("CREW_JOB_COLOR", "#0c4329"),
		CrewCustomerCompanyID: int64(getEnvAsInt("CREW_CUSTOMER_COMPANY_ID", 0)),
		CrewStaffPasswordMin:  getEnvAsInt("CREW_STAFF_PASSWORD_MIN", 6),

		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),

		AsynqRedisAddr:     getEnv("ASYNQ_REDIS_ADDR", "127.0.0.1:6379"),
		AsynqRedisPassword: getEnv("ASYNQ_REDIS_PASSWORD", ""),
		AsynqRedisDB:       getEnvAsInt("ASYNQ_REDIS_DB", 0),
	}

	if cfg.ImportTitleRows < 0 {
		return nil, fmt.Errorf("IMPORT_TITLE_ROWS must not be negative, got %d", cfg.ImportTitleRows)
	}

	return cfg, nil
}

// CrewCredentials reads the upstream base URL and bearer token. Both are
// required; the NUXT_ names are kept for existing deployments.
func CrewCredentials() (Credentials, error) {
	creds := Credentials{
		BaseURL:   firstEnv("NUXT_CREW_BASE_URL", "CREW_BASE_URL"),
		Token:     firstEnv("NUXT_CREW_API_TOKEN", "CREW_API_TOKEN"),
		CompanyID: int64(getEnvAsInt("CREW_COMPANY_ID", 0)),
	}
	if creds.BaseURL == "" || creds.Token == "" {
		return creds, fmt.Errorf("missing NUXT_CREW_BASE_URL or NUXT_CREW_API_TOKEN")
	}
	return creds, nil
}

// HasDatabase reports whether import history should be persisted.
func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
