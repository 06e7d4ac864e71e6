package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed application configuration read from the environment.
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	LogFile     string
	CORSOrigins []string

	JWTSecret      string
	JWTExpireHours int

	StoreBackend     string
	DB               DBConfig
	FirestoreProject string

	StorageBackend     string
	StorageDir         string
	PublicBaseURL      string
	StorageSecret      string
	GCSBucket          string
	GCSCredentialsJSON string
	SignedURLTTL       time.Duration

	MaxUploadMB       int
	GpsMaxImages      int
	PhoneRegion       string
	PaymentWindowDays int
	ImportBatchDelay  time.Duration

	RedisAddress  string
	RedisPassword string

	SMTP SMTPConfig
}

type DBConfig struct {
	Host       string
	Port       string
	Database   string
	Username   string
	Password   string
	SQLitePath string
	DebugSQL   bool
	MaxOpen    int
	MaxIdle    int
}

type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string
	SkipTLSVerify bool
}

var defaults = map[string]any{
	"ENVIRONMENT":         "development",
	"PORT":                "8080",
	"LOG_LEVEL":           "info",
	"LOG_FILE":            "logs/solar-api.log",
	"CORS_ORIGINS":        "http://localhost:3000",
	"JWT_EXPIRE_HOURS":    24,
	"STORE_BACKEND":       "mysql",
	"DB_HOST":             "127.0.0.1",
	"DB_PORT":             "3306",
	"DB_DATABASE":         "solar",
	"DB_USERNAME":         "root",
	"SQLITE_PATH":         "solar.db",
	"DB_MAX_OPEN_CONNS":   20,
	"DB_MAX_IDLE_CONNS":   5,
	"STORAGE_BACKEND":     "local",
	"STORAGE_DIR":         "uploads",
	"PUBLIC_BASE_URL":     "http://localhost:8080",
	"SIGNED_URL_TTL":      "15m",
	"MAX_UPLOAD_MB":       10,
	"GPS_MAX_IMAGES":      5,
	"PHONE_REGION":        "IN",
	"PAYMENT_WINDOW_DAYS": 30,
	"IMPORT_BATCH_DELAY":  "200ms",
	"SMTP_PORT":           587,
}

// NewViper loads .env (when present) and returns a viper instance reading
// the environment with the application defaults.
func NewViper() *viper.Viper {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper builds a Config from an already prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(v.GetString("ENVIRONMENT")),
		Port:        v.GetString("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFile:     v.GetString("LOG_FILE"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),

		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTExpireHours: v.GetInt("JWT_EXPIRE_HOURS"),

		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		DB: DBConfig{
			Host:       v.GetString("DB_HOST"),
			Port:       v.GetString("DB_PORT"),
			Database:   v.GetString("DB_DATABASE"),
			Username:   v.GetString("DB_USERNAME"),
			Password:   v.GetString("DB_PASSWORD"),
			SQLitePath: v.GetString("SQLITE_PATH"),
			DebugSQL:   v.GetBool("DEBUG_SQL"),
			MaxOpen:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdle:    v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		FirestoreProject: v.GetString("FIRESTORE_PROJECT_ID"),

		StorageBackend:     strings.ToLower(v.GetString("STORAGE_BACKEND")),
		StorageDir:         v.GetString("STORAGE_DIR"),
		PublicBaseURL:      strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		StorageSecret:      v.GetString("STORAGE_SIGNING_SECRET"),
		GCSBucket:          v.GetString("GCS_BUCKET"),
		GCSCredentialsJSON: v.GetString("GCS_CREDENTIALS_JSON"),
		SignedURLTTL:       v.GetDuration("SIGNED_URL_TTL"),

		MaxUploadMB:       v.GetInt("MAX_UPLOAD_MB"),
		GpsMaxImages:      v.GetInt("GPS_MAX_IMAGES"),
		PhoneRegion:       strings.ToUpper(v.GetString("PHONE_REGION")),
		PaymentWindowDays: v.GetInt("PAYMENT_WINDOW_DAYS"),
		ImportBatchDelay:  v.GetDuration("IMPORT_BATCH_DELAY"),

		RedisAddress:  v.GetString("REDIS_ADDRESS"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		SMTP: SMTPConfig{
			Host:          v.GetString("SMTP_HOST"),
			Port:          v.GetInt("SMTP_PORT"),
			User:          v.GetString("SMTP_USER"),
			Pass:          v.GetString("SMTP_PASS"),
			From:          v.GetString("SMTP_FROM"),
			SkipTLSVerify: v.GetString("SMTP_SKIP_TLS_VERIFY") == "1",
		},
	}
	if cfg.StorageSecret == "" {
		cfg.StorageSecret = cfg.JWTSecret
	}
	switch cfg.StoreBackend {
	case "mysql", "postgres", "sqlite", "firestore":
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.StorageBackend {
	case "local", "gcs":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MaxUploadBytes is the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// PaymentWindow is how long an unpaid balance may go without a payment.
func (c *Config) PaymentWindow() time.Duration {
	return time.Duration(c.PaymentWindowDays) * 24 * time.Hour
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
