package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration of the auth API loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTPTTL            time.Duration
	OTPResendCooldown time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	RedisAddr     string // empty disables the server-side resend cooldown
	RedisPassword string
	RedisDB       int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	Sessions          string
	UserVerifications string
}

// Load reads all server configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			UserVerifications: getEnv("DYNAMO_TABLE_USER_VERIFICATIONS", "user_verifications"),
		},
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		OTPTTL:            time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPResendCooldown: time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// ClientConfig holds the configuration of the auth client host (cmd/authcli).
type ClientConfig struct {
	BaseURL     string
	TokenDBPath string // empty keeps the session in memory only
	HTTPTimeout time.Duration
	LogLevel    string
}

// LoadClient reads the client configuration from environment variables.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		BaseURL:     strings.TrimRight(getEnv("AUTH_API_BASE_URL", "http://localhost:3000/api/auth"), "/"),
		TokenDBPath: getEnv("AUTH_TOKEN_DB_PATH", "./authcli.db"),
		HTTPTimeout: time.Duration(getEnvInt("AUTH_HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:    getEnv("LOG_LEVEL", "warn"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
