// Package config loads all runtime configuration from the environment.
// A .env file is honored when present so local development needs no shell
// exports; production deployments set real environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration tree, grouped by concern. It is built
// once in main and passed down; nothing reads os.Getenv after startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	SFU      SFUConfig
	Email    EmailConfig
	Upload   UploadConfig
	Crypto   CryptoConfig
	Limits   LimitsConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host      string
	Port      int
	Env       string // "development" or "production"; switches log encoding
	PublicURL string // external base URL, used in password-reset mails
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string
}

// JWTConfig holds token signing settings. Secret is mandatory.
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// SFUConfig holds the default platform SFU credentials plus the budget for
// token minting during a voice join.
type SFUConfig struct {
	URL         string
	APIKey      string
	APISecret   string
	MintTimeout time.Duration
}

// EmailConfig holds the transactional mail settings (password resets).
// An empty APIKey disables outbound mail.
type EmailConfig struct {
	APIKey      string
	FromAddress string
	AppURL      string
}

// UploadConfig holds attachment/avatar storage settings.
type UploadConfig struct {
	Dir     string
	MaxSize int64
}

// CryptoConfig holds the AES-256 key (hex) used to encrypt SFU instance
// credentials at rest. Mandatory: admin-plane rows are unreadable without it.
type CryptoConfig struct {
	AESKeyHex string
}

// LimitsConfig groups tunable protection limits.
type LimitsConfig struct {
	LoginAttempts   int           // per-IP failed logins before lockout
	LoginWindow     time.Duration // lockout window
	MessagesPerUnit int           // messages per user per window
	MessageWindow   time.Duration
	PinsPerChannel  int
	WSSendBuffer    int // per-connection outbound queue length
}

// Load reads the environment (after loading .env when present) and builds
// the Config. Hard requirements (JWT secret, AES key) abort startup with an
// error rather than limping along with an insecure default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 9090)
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	aesKey := getEnv("CRYPTO_AES_KEY", "")
	if aesKey == "" {
		return nil, fmt.Errorf("CRYPTO_AES_KEY environment variable is required (64 hex chars)")
	}

	accessExpiry, err := getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshExpiry, err := getEnvDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	mintTimeout, err := getEnvDuration("SFU_MINT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	maxUpload, err := getEnvInt64("UPLOAD_MAX_SIZE", 25<<20)
	if err != nil {
		return nil, err
	}

	loginAttempts, err := getEnvInt("LIMIT_LOGIN_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	loginWindow, err := getEnvDuration("LIMIT_LOGIN_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	msgsPerUnit, err := getEnvInt("LIMIT_MESSAGES", 10)
	if err != nil {
		return nil, err
	}
	msgWindow, err := getEnvDuration("LIMIT_MESSAGE_WINDOW", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pinsPerChannel, err := getEnvInt("LIMIT_PINS_PER_CHANNEL", 50)
	if err != nil {
		return nil, err
	}
	wsSendBuffer, err := getEnvInt("WS_SEND_BUFFER", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      port,
			Env:       getEnv("ENV", "production"),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:9090"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/chorus.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		SFU: SFUConfig{
			URL:         getEnv("SFU_URL", "ws://localhost:7880"),
			APIKey:      getEnv("SFU_API_KEY", ""),
			APISecret:   getEnv("SFU_API_SECRET", ""),
			MintTimeout: mintTimeout,
		},
		Email: EmailConfig{
			APIKey:      getEnv("RESEND_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM", "Chorus <noreply@chorus.local>"),
			AppURL:      getEnv("APP_URL", "http://localhost:3000"),
		},
		Upload: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", "./data/uploads"),
			MaxSize: maxUpload,
		},
		Crypto: CryptoConfig{
			AESKeyHex: aesKey,
		},
		Limits: LimitsConfig{
			LoginAttempts:   loginAttempts,
			LoginWindow:     loginWindow,
			MessagesPerUnit: msgsPerUnit,
			MessageWindow:   msgWindow,
			PinsPerChannel:  pinsPerChannel,
			WSSendBuffer:    wsSendBuffer,
		},
	}

	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:9090".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Development reports whether the process runs in development mode.
func (c *ServerConfig) Development() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
