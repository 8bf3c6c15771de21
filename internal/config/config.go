package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Record store
	StoreBackend string
	DataDir      string
	DatabaseURL  string

	// Sessions, OTP codes and carts live in Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration
	CartTTL       time.Duration
	OTPTTL        time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Twilio messaging
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	TwilioWhatsAppFrom string
	NotifyChannel      string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	EmailReplyTo      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ReportsBucket       string

	// Payments
	RazorpayKeyID     string
	RazorpayKeySecret string
	UPIVPA            string

	LabName     string
	LabTimezone string
	BlogDir     string

	// Reminders
	RemindersEnabled            bool
	ReminderGenerateSchedule    string
	ReminderDispatchSchedule    string
	ReminderSinkTimeout         time.Duration
	ReminderDispatchConcurrency int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "5000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "json"))),
		DataDir:      getEnv("DATA_DIR", "data"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		CartTTL:       getEnvAsDuration("CART_TTL", 24*time.Hour),
		OTPTTL:        getEnvAsDuration("OTP_TTL", 5*time.Minute),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:   getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		NotifyChannel:      strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_CHANNEL", "whatsapp"))),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "BloodLab"),
		EmailReplyTo:      getEnv("EMAIL_REPLY_TO", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReportsBucket:       getEnv("REPORTS_BUCKET", ""),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		UPIVPA:            getEnv("UPI_VPA", "bloodlab@upi"),

		LabName:     getEnv("LAB_NAME", "GAURAVI iHEALTH DIAGNOSTICS"),
		LabTimezone: getEnv("LAB_TIMEZONE", "Asia/Kolkata"),
		BlogDir:     getEnv("BLOG_DIR", "blog"),

		RemindersEnabled:            getEnvAsBool("REMINDERS_ENABLED", true),
		ReminderGenerateSchedule:    getEnv("REMINDER_GENERATE_SCHEDULE", "0 9 * * *"),
		ReminderDispatchSchedule:    getEnv("REMINDER_DISPATCH_SCHEDULE", "@every 1m"),
		ReminderSinkTimeout:         getEnvAsDuration("REMINDER_SINK_TIMEOUT", 15*time.Second),
		ReminderDispatchConcurrency: getEnvAsInt("REMINDER_DISPATCH_CONCURRENCY", 4),
	}
}

// IsProduction reports whether the service runs with production behaviour
// (real OTP codes, strict cookies).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location resolves LabTimezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LabTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
