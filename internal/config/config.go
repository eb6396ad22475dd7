package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// AppDatabaseName is the database the dashboard API runs against.
	AppDatabaseName = "aquaguard"
	// AdminDatabaseName is the maintenance database used to check for and create AppDatabaseName.
	AdminDatabaseName = "postgres"
)

var ErrMissingDBPassword = errors.New("DB_PASSWORD is not set")

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Email    EmailConfig
	Log      LogConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StaticDir    string
	CookieSecure bool
}

// DatabaseConfig describes one Postgres connection. The same struct serves as
// admin and app config; see Admin and App.
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	PrivateKeyPath    string
	PublicKeyPath     string
	AccessTokenExpiry time.Duration
	Issuer            string
}

type AuthConfig struct {
	MaxFailedLogins int
	LockDuration    time.Duration
}

type EmailConfig struct {
	Enabled      bool
	APIKey       string
	FromEmail    string
	FromName     string
	DashboardURL string
}

type LogConfig struct {
	Level string
	JSON  bool
}

type CORSConfig struct {
	AllowOrigins string
}

func Load() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			StaticDir:    getEnv("STATIC_DIR", "./web"),
			CookieSecure: getBoolEnv("COOKIE_SECURE", false),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       os.Getenv("DB_PASSWORD"),
			DBName:         AppDatabaseName,
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ConnectTimeout: getDurationEnv("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			PrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			AccessTokenExpiry: getDurationEnv("JWT_ACCESS_EXPIRY", 24*time.Hour),
			Issuer:            getEnv("JWT_ISSUER", "aquaguard"),
		},
		Auth: AuthConfig{
			MaxFailedLogins: getIntEnv("AUTH_MAX_FAILED_LOGINS", 5),
			LockDuration:    getDurationEnv("AUTH_LOCK_DURATION", 15*time.Minute),
		},
		Email: EmailConfig{
			Enabled:      getBoolEnv("EMAIL_ENABLED", false),
			APIKey:       getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", "no-reply@aquaguard.ai"),
			FromName:     getEnv("EMAIL_FROM_NAME", "AquaguardAI"),
			DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:8080/dashboard"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getBoolEnv("LOG_JSON", false),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000"),
		},
	}

	return cfg, nil
}

// Validate reports settings the API server cannot run without.
// Diagnostics deliberately runs without calling it.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return ErrMissingDBPassword
	}
	if c.Auth.MaxFailedLogins <= 0 {
		return fmt.Errorf("AUTH_MAX_FAILED_LOGINS must be positive, got %d", c.Auth.MaxFailedLogins)
	}
	return nil
}

// Admin returns a copy of c pointed at the maintenance database.
func (c DatabaseConfig) Admin() DatabaseConfig {
	c.DBName = AdminDatabaseName
	return c
}

// App returns a copy of c pointed at the application database.
func (c DatabaseConfig) App() DatabaseConfig {
	c.DBName = AppDatabaseName
	return c
}

func (c DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, quoteDSNValue(c.Password), c.DBName, c.SSLMode,
	)
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		dsn += fmt.Sprintf(" connect_timeout=%d", secs)
	}
	return dsn
}

// URL renders the config as a postgres:// URL with the password redacted.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, "xxxxx")
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// quoteDSNValue quotes a key/value DSN value so passwords with spaces or quotes survive.
func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
