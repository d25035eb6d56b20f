package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers understood by the application.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Image store backends.
const (
	ImageStoreLocal = "local"
	ImageStoreS3    = "s3"
)

// Category delete policies.
const (
	DeletePolicyAllow = "allow"
	DeletePolicyBlock = "block"
)

// Config holds every setting read at process start. It is built once and never
// mutated afterwards.
type Config struct {
	AppPort string

	StoreDriver   string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string

	JWTSecret    string
	JWTTTL       time.Duration
	SessionTTL   time.Duration
	CookieSecure bool

	ImageStore   string
	ImageDir     string
	ImageBaseURL string
	S3Bucket     string
	AWSRegion    string
	S3Endpoint   string
	MaxImageSize int64

	RabbitMQURL string

	CategoryDeletePolicy string

	LogLevel  string
	LogFormat string

	LoginRatePerMinute int
	LoginBurst         int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "file:catalog.db?cache=shared")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "catalog")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("IMAGE_STORE", ImageStoreLocal)
	v.SetDefault("IMAGE_DIR", "./uploads")
	v.SetDefault("IMAGE_BASE_URL", "/uploads")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("MAX_IMAGE_SIZE", 5*1024*1024)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("CATEGORY_DELETE_POLICY", DeletePolicyAllow)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 30)
	v.SetDefault("LOGIN_BURST", 10)
}

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:              v.GetString("APP_PORT"),
		StoreDriver:          strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		MongoURI:             v.GetString("MONGO_URI"),
		MongoDatabase:        v.GetString("MONGO_DATABASE"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTTTL:               v.GetDuration("JWT_TTL"),
		SessionTTL:           v.GetDuration("SESSION_TTL"),
		CookieSecure:         v.GetBool("COOKIE_SECURE"),
		ImageStore:           strings.ToLower(v.GetString("IMAGE_STORE")),
		ImageDir:             v.GetString("IMAGE_DIR"),
		ImageBaseURL:         strings.TrimRight(v.GetString("IMAGE_BASE_URL"), "/"),
		S3Bucket:             strings.TrimSpace(v.GetString("S3_BUCKET")),
		AWSRegion:            strings.TrimSpace(v.GetString("AWS_REGION")),
		S3Endpoint:           strings.TrimSpace(v.GetString("S3_ENDPOINT")),
		MaxImageSize:         v.GetInt64("MAX_IMAGE_SIZE"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		CategoryDeletePolicy: strings.ToLower(v.GetString("CATEGORY_DELETE_POLICY")),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		LoginRatePerMinute:   v.GetInt("LOGIN_RATE_PER_MINUTE"),
		LoginBurst:           v.GetInt("LOGIN_BURST"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMySQL, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.ImageStore {
	case ImageStoreLocal:
	case ImageStoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_STORE %q", c.ImageStore)
	}

	switch c.CategoryDeletePolicy {
	case DeletePolicyAllow, DeletePolicyBlock:
	default:
		return fmt.Errorf("unsupported CATEGORY_DELETE_POLICY %q", c.CategoryDeletePolicy)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be positive")
	}
	if c.LoginRatePerMinute <= 0 || c.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE and LOGIN_BURST must be positive")
	}
	return nil
}
