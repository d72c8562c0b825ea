package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Database struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Schema   string
}

type OAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type Storefront struct {
	Port               string
	LogLevel           string
	LogFormat          string
	DB                 Database
	RedisAddr          string
	RedisPassword      string
	ProductCacheTTL    time.Duration
	PaymentMode        string
	PaymentServiceURL  string
	PaymentTimeout     time.Duration
	BreakerFailures    int
	OAuth              OAuth
	SessionSecret      string
	UploadDir          string
	Currency           string
	RabbitMQURL        string
	RabbitMQQueue      string
	ReconcileInterval  time.Duration
	ReconcileStuckFor  time.Duration
	CORSAllowedOrigins []string
	InitialBalance     decimal.Decimal
}

type Payment struct {
	Port               string
	LogLevel           string
	LogFormat          string
	Store              string
	DSN                string
	OIDCIssuerURL      string
	OIDCAudience       string
	Currency           string
	InitialBalance     decimal.Decimal
	CORSAllowedOrigins []string
}

func LoadDatabase() Database {
	return Database{
		Host:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
		Port:     getEnv("BLUEPRINT_DB_PORT", "5432"),
		Username: getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
		Password: getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
		Database: getEnv("BLUEPRINT_DB_DATABASE", "toyshop"),
		Schema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),
	}
}

func LoadStorefront() *Storefront {
	return &Storefront{
		Port:              getEnv("HTTP_PORT", "8082"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		DB:                LoadDatabase(),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		ProductCacheTTL:   getEnvAsDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		PaymentMode:       getEnv("PAYMENT_MODE", "http"),
		PaymentServiceURL: getEnv("PAYMENT_SERVICE_URL", "http://localhost:8081"),
		PaymentTimeout:    getEnvAsDuration("PAYMENT_TIMEOUT", 10*time.Second),
		BreakerFailures:   getEnvAsInt("PAYMENT_BREAKER_FAILURES", 5),
		OAuth: OAuth{
			TokenURL:     getEnv("OAUTH_TOKEN_URL", "http://localhost:8080/realms/toyshop/protocol/openid-connect/token"),
			ClientID:     getEnv("OAUTH_CLIENT_ID", "payment-client"),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
			Scopes:       getEnvAsList("OAUTH_SCOPES", []string{"payments.read", "payments.write"}),
		},
		SessionSecret:      getEnv("SESSION_SECRET", "change-me-in-production"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		Currency:           getEnv("CURRENCY", "RUB"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", "order_events"),
		ReconcileInterval:  getEnvAsDuration("RECONCILE_INTERVAL", 30*time.Second),
		ReconcileStuckFor:  getEnvAsDuration("RECONCILE_STUCK_AFTER", time.Minute),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8082"}),
		InitialBalance:     getEnvAsDecimal("INITIAL_BALANCE", decimal.NewFromInt(10000)),
	}
}

func LoadPayment() *Payment {
	return &Payment{
		Port:               getEnv("HTTP_PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		Store:              getEnv("LEDGER_STORE", "memory"),
		DSN:                getEnv("LEDGER_DB_DSN", ""),
		OIDCIssuerURL:      getEnv("OIDC_ISSUER_URL", "http://localhost:8080/realms/toyshop"),
		OIDCAudience:       getEnv("OIDC_AUDIENCE", ""),
		Currency:           getEnv("CURRENCY", "RUB"),
		InitialBalance:     getEnvAsDecimal("INITIAL_BALANCE", decimal.NewFromInt(10000)),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8082"}),
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
