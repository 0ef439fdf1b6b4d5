package config

import (
	"os"
	"strconv"
	"time"
)

// Persistence backends selectable through STORE_BACKEND.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreObject   = "object"
	StoreRedis    = "redis"
)

// Attachment backends selectable through UPLOAD_BACKEND.
const (
	UploadLocal = "local"
	UploadMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SQLiteConfig points at the embedded database file.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds the redis connection used by the redis store backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NATSConfig enables domain event publishing when URL is set.
type NATSConfig struct {
	URL string
}

// StoreConfig selects where the listing collection is persisted.
type StoreConfig struct {
	Backend   string
	DataFile  string
	ObjectKey string
}

// UploadConfig holds the attachment limits and the attachment backend.
type UploadConfig struct {
	Backend     string
	Dir         string
	MaxFiles    int
	MaxFileSize int64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	Version        string
	LogLevel       string
	Timezone       string
	MetricsEnabled bool
	Store          StoreConfig
	Upload         UploadConfig
	Database       DatabaseConfig
	SQLite         SQLiteConfig
	MinIO          MinIOConfig
	Redis          RedisConfig
	NATS           NATSConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:3001"),
		Port:           getEnv("PORT", "3001"),
		Version:        getEnv("APP_VERSION", "1.0.0"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Timezone:       getEnv("TZ", "UTC"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		Store: StoreConfig{
			Backend:   getEnv("STORE_BACKEND", StoreFile),
			DataFile:  getEnv("DATA_FILE", "data/listings.json"),
			ObjectKey: getEnv("STORE_OBJECT_KEY", "listings.json"),
		},
		Upload: UploadConfig{
			Backend:     getEnv("UPLOAD_BACKEND", UploadLocal),
			Dir:         getEnv("UPLOAD_DIR", "uploads"),
			MaxFiles:    getEnvInt("UPLOAD_MAX_FILES", 5),
			MaxFileSize: getEnvInt64("UPLOAD_MAX_FILE_SIZE", 5<<20),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "data/listings.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Key:      getEnv("REDIS_KEY", "classificados:listings"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BodyLimit is the largest request body the HTTP server accepts:
// every attachment at its maximum size plus room for the form fields.
func (c *AppConfig) BodyLimit() int {
	return int(int64(c.Upload.MaxFiles)*c.Upload.MaxFileSize) + 1<<20
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
