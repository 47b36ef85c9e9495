package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresMirror   bool

	DataDir     string
	DataFormat  string
	URLsFile    string
	WebURLsFile string

	ChromeBin string
	Headless  bool

	MaxRetries         int
	RetryDelayMs       int
	SettleMs           int
	FirstBrandSettleMs int
	ModelTimeoutMs     int
	DetailTimeoutMs    int
	TileTimeoutMs      int
	NavTimeoutMs       int
	PageLoadTimeoutMs  int
	AttemptTimeoutMs   int

	LogLevel  string
	LogFormat string

	ServerAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "harvester"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "harvester"),
		PostgresDB:       getEnv("POSTGRES_DB", "discounts"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMirror:   getEnvBool("POSTGRES_MIRROR", false),

		DataDir:     getEnv("DATA_DIR", "./data"),
		DataFormat:  strings.ToLower(getEnv("DATA_FORMAT", "xlsx")),
		URLsFile:    getEnv("URLS_FILE", "./src/urls.json"),
		WebURLsFile: getEnv("WEB_URLS_FILE", "./src/urls-web.json"),

		ChromeBin: getEnv("CHROME_BIN", ""),
		Headless:  getEnvBool("HEADLESS", true),

		MaxRetries:         getEnvInt("MAX_RETRIES", 5),
		RetryDelayMs:       getEnvInt("RETRY_DELAY_MS", 3000),
		SettleMs:           getEnvInt("SETTLE_MS", 3000),
		FirstBrandSettleMs: getEnvInt("FIRST_BRAND_SETTLE_MS", 5000),
		ModelTimeoutMs:     getEnvInt("MODEL_TIMEOUT_MS", 10000),
		DetailTimeoutMs:    getEnvInt("DETAIL_TIMEOUT_MS", 6000),
		TileTimeoutMs:      getEnvInt("TILE_TIMEOUT_MS", 3000),
		NavTimeoutMs:       getEnvInt("NAV_TIMEOUT_MS", 30000),
		PageLoadTimeoutMs:  getEnvInt("PAGE_LOAD_TIMEOUT_MS", 600000),
		AttemptTimeoutMs:   getEnvInt("ATTEMPT_TIMEOUT_MS", 1800000),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		ServerAddr: getEnv("SERVER_ADDR", ":5000"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func (c *Config) RetryDelay() time.Duration { return ms(c.RetryDelayMs) }

// Settle returns the post-load pause for the brand at configurator index i.
func (c *Config) Settle(i int) time.Duration {
	if i == 1 {
		return ms(c.FirstBrandSettleMs)
	}
	return ms(c.SettleMs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
