package config

import (
	"os"
	"strings"
	"time"
)

// Server configures the mock platform (cmd/socmock).
type Server struct {
	Port             string
	DBPath           string
	StorageDir       string
	Workers          int
	Login            string
	Password         string
	JWTSecret        string
	TokenTTL         time.Duration
	MaterializeDelay time.Duration
	FailPolls        []int
}

func LoadServer() Server {
	return Server{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "socmock.db"),
		StorageDir:       getEnv("STORAGE_DIR", "storage"),
		Workers:          getEnvInt("WORKERS", 5),
		Login:            getEnv("PANEL_LOGIN", "admin"),
		Password:         getEnv("PANEL_PASSWORD", "admin"),
		JWTSecret:        getEnv("JWT_SECRET", "socmock-secret"),
		TokenTTL:         getEnvDuration("TOKEN_TTL", time.Hour),
		MaterializeDelay: getEnvDuration("MATERIALIZE_DELAY", 2*time.Second),
		FailPolls:        getEnvInts("FAIL_POLLS"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, ok := parseInt(v)
	if !ok {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// getEnvInts parses a comma separated list, skipping malformed entries.
func getEnvInts(key string) []int {
	var out []int
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if n, ok := parseInt(strings.TrimSpace(part)); ok {
			out = append(out, n)
		}
	}
	return out
}

func parseInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
