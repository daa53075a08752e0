// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when
// present; real environment variables always win.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // APP_ENV (dev, test, prod)
	Port           string // APP_PORT
	DBUser         string // DB_USER
	DBPass         string // DB_PASS (empty allowed)
	DBHost         string // DB_HOST
	DBPort         string // DB_PORT
	DBName         string // DB_NAME
	JWTSecret      string // JWT_SECRET
	AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int    // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int    // BCRYPT_COST
	RabbitURL      string // RABBITMQ_URL (empty disables publishing and the consumer)
}

// PaymentConfig configures the payment gateway client.
type PaymentConfig struct {
	BaseURL     string        // PAYSTACK_BASE_URL
	SecretKey   string        // PAYSTACK_SECRET_KEY
	Timeout     time.Duration // PAYMENT_TIMEOUT
	CallbackURL string        // PAYMENT_CALLBACK_URL
}

// MailConfig selects and configures the ticket mail driver.
type MailConfig struct {
	Driver           string // MAIL_DRIVER: smtp, mailersend or log
	SMTPHost         string // SMTP_HOST
	SMTPPort         int    // SMTP_PORT
	SMTPUser         string // SMTP_USER
	SMTPPassword     string // SMTP_PASSWORD
	MailerSendAPIKey string // MAILERSEND_API_KEY
	From             string // MAIL_FROM
	FromName         string // MAIL_FROM_NAME
}

// FulfillmentConfig configures ticket issuance.
type FulfillmentConfig struct {
	MediaRoot     string        // MEDIA_ROOT, where QR images are written
	PublicBaseURL string        // PUBLIC_BASE_URL, prefix of redemption links
	LockTTL       time.Duration // FULFILL_LOCK_TTL, per-order lock lifetime
}

// LoadDotEnv reads .env into the process environment if the file exists.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
}

// Load reads the core configuration.  Missing required variables cause
// the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
	}
}

// LoadPaymentConfig reads the gateway settings.  The secret key is
// required; the base URL defaults to the public Paystack API.
func LoadPaymentConfig() PaymentConfig {
	return PaymentConfig{
		BaseURL:     envStr("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		SecretKey:   must("PAYSTACK_SECRET_KEY"),
		Timeout:     envDur("PAYMENT_TIMEOUT", 10*time.Second),
		CallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
	}
}

// LoadMailConfig reads the mail driver settings.  The log driver is the
// default so development setups need no mail server.
func LoadMailConfig() MailConfig {
	return MailConfig{
		Driver:           envStr("MAIL_DRIVER", "log"),
		SMTPHost:         envStr("SMTP_HOST", "localhost"),
		SMTPPort:         envInt("SMTP_PORT", 587),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		MailerSendAPIKey: os.Getenv("MAILERSEND_API_KEY"),
		From:             envStr("MAIL_FROM", "tickets@localhost"),
		FromName:         envStr("MAIL_FROM_NAME", "Tickets"),
	}
}

// LoadFulfillmentConfig reads the ticket issuance settings.
func LoadFulfillmentConfig() FulfillmentConfig {
	return FulfillmentConfig{
		MediaRoot:     envStr("MEDIA_ROOT", "media"),
		PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8080"),
		LockTTL:       envDur("FULFILL_LOCK_TTL", 2*time.Minute),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
