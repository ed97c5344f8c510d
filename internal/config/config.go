package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RecaptchaSecret   string
	RecaptchaMinScore float64

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// Base URLs the redemption links in outgoing mail point at.
	FrontendBaseURL       string
	FrontendMatrixBaseURL string

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBSSLRootCert string
	SharedSchemas []string // schemas every provisioned account can read

	MatrixRegisterURL  string
	MatrixSharedSecret string
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	Requests       string
	MatrixRequests string
	Accounts       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Requests:       getEnv("DYNAMO_TABLE_REQUESTS", "requests"),
			MatrixRequests: getEnv("DYNAMO_TABLE_REQUESTS_MATRIX", "requests_matrix"),
			Accounts:       getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
		},

		RecaptchaSecret:   getEnv("RECAPTCHA_SECRET", ""),
		RecaptchaMinScore: getEnvFloat("RECAPTCHA_MIN_SCORE", 0.7),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@nic.bc.ca"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		FrontendBaseURL:       getEnv("FRONTEND_BASE_URL", "http://localhost:8080/accounts"),
		FrontendMatrixBaseURL: getEnv("FRONTEND_MATRIX_BASE_URL", "http://localhost:8080/accounts-matrix"),

		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "provisioner"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "students"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBSSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		SharedSchemas: strings.Split(getEnv("SHARED_SCHEMAS", "library,bookstore,world"), ","),

		MatrixRegisterURL:  getEnv("MATRIX_REGISTER_URL", "http://localhost:8008/_synapse/admin/v1/register"),
		MatrixSharedSecret: getEnv("MATRIX_SHARED_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
