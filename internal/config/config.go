package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"supplydesk/backend/internal/logger"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

type Config struct {
	Port          string
	AllowedOrigin string

	DataBackend             string
	DatabaseURL             string
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ViewCacheTTLSeconds  int
	AMQPURL              string
	EventsQueue          string
	ReferenceRefreshSecs int

	AuthSecret            string
	AccessTokenTTLMinutes int

	Timezone         string
	OrderWindowStart string
	OrderWindowEnd   string

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),

		DataBackend:             strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		ViewCacheTTLSeconds:  positiveInt("VIEW_CACHE_TTL_SECONDS", 300),
		AMQPURL:              os.Getenv("AMQP_URL"),
		EventsQueue:          getEnv("EVENTS_QUEUE", "backoffice_events"),
		ReferenceRefreshSecs: positiveInt("REFERENCE_REFRESH_SECONDS", 60),

		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),

		Timezone:         getEnv("TIMEZONE", "Europe/London"),
		OrderWindowStart: getEnv("ORDER_WINDOW_START", "09:00"),
		OrderWindowEnd:   getEnv("ORDER_WINDOW_END", "23:00"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ViewCacheTTL() time.Duration {
	return time.Duration(c.ViewCacheTTLSeconds) * time.Second
}

func (c Config) ReferenceRefreshInterval() time.Duration {
	return time.Duration(c.ReferenceRefreshSecs) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// Validate checks the settings every command needs regardless of transport.
func (c Config) Validate() error {
	switch c.DataBackend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=%s", BackendPostgres)
		}
	case BackendFirestore:
		if strings.TrimSpace(c.FirebaseProjectID) == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when DATA_BACKEND=%s", BackendFirestore)
		}
	default:
		return fmt.Errorf("unknown DATA_BACKEND %q", c.DataBackend)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
