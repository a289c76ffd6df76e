package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Login    LoginConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey   string
	UserExpiry  time.Duration
	AdminExpiry time.Duration
}

// AdminConfig is the shared administrator credential pair
type AdminConfig struct {
	Email    string
	Password string
}

// LoginConfig bounds failed login attempts per identity within a window
type LoginConfig struct {
	MaxAttempts int
	Window      time.Duration
}

var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.allowed_origins": "CORS_ALLOWED_ORIGINS",
	"server.request_timeout": "SERVER_REQUEST_TIMEOUT",
	"database.host":          "DATABASE_HOST",
	"database.port":          "DATABASE_PORT",
	"database.user":          "DATABASE_USER",
	"database.password":      "DATABASE_PASSWORD",
	"database.name":          "DATABASE_NAME",
	"database.ssl_mode":      "DATABASE_SSL_MODE",
	"redis.host":             "REDIS_HOST",
	"redis.port":             "REDIS_PORT",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"jwt.secret_key":         "JWT_SECRET_KEY",
	"jwt.expiry_hours":       "JWT_EXPIRY_HOURS",
	"jwt.admin_expiry_hours": "ADMIN_JWT_EXPIRY_HOURS",
	"admin.email":            "ADMIN_EMAIL",
	"admin.password":         "ADMIN_PASSWORD",
	"argon2.time":            "ARGON2_TIME",
	"argon2.memory":          "ARGON2_MEMORY",
	"argon2.threads":         "ARGON2_THREADS",
	"argon2.key_length":      "ARGON2_KEY_LENGTH",
	"argon2.salt_length":     "ARGON2_SALT_LENGTH",
	"login.max_attempts":     "LOGIN_MAX_ATTEMPTS",
	"login.window":           "LOGIN_WINDOW",
}

// SetDefaults registers the fallback values used when neither .env nor the environment sets a key.
func SetDefaults() {
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.allowed_origins", "http://localhost:3000")
	viper.SetDefault("server.request_timeout", 60*time.Second)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "bva_bank")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("jwt.admin_expiry_hours", 24*7)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("login.max_attempts", 5)
	viper.SetDefault("login.window", 15*time.Minute)
}

// Load reads .env (if present) and the environment into a Config.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	return FromViper()
}

// FromViper builds a Config from whatever viper currently holds.
func FromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            viper.GetString("server.port"),
			AllowedOrigins:  splitList(viper.GetString("server.allowed_origins")),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  viper.GetDuration("server.request_timeout"),
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetString("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			Name:            viper.GetString("database.name"),
			SSLMode:         viper.GetString("database.ssl_mode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey:   viper.GetString("jwt.secret_key"),
			UserExpiry:  time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour,
			AdminExpiry: time.Duration(viper.GetInt("jwt.admin_expiry_hours")) * time.Hour,
		},
		Admin: AdminConfig{
			Email:    viper.GetString("admin.email"),
			Password: viper.GetString("admin.password"),
		},
		Login: LoginConfig{
			MaxAttempts: viper.GetInt("login.max_attempts"),
			Window:      viper.GetDuration("login.window"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
