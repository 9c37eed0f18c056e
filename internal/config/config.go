package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds process configuration, loaded once at startup.
type Config struct {
	Port    string
	Version string

	// Upstream loan bot.
	CarePayBaseURL  string
	MachineUsername string
	MachinePassword string

	// Storage drivers. Primary is the authoritative slot, backup an optional
	// second persistent slot; the ephemeral in-memory slot always exists.
	StorageDriver string // memory | file | postgres
	BackupDriver  string // none | redis
	StoragePath   string
	RedisURL      string
}

// Load reads the .env file when present and assembles the configuration from
// the environment.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found - using environment variables")
	}

	return &Config{
		Port:            getEnvDefault("PORT", "8080"),
		Version:         getEnvDefault("APP_VERSION", "1.0.0"),
		CarePayBaseURL:  getEnvDefault("CAREPAY_BASE_URL", "https://api.carepay.example.com"),
		MachineUsername: os.Getenv("CAREPAY_USERNAME"),
		MachinePassword: os.Getenv("CAREPAY_PASSWORD"),
		StorageDriver:   getEnvDefault("STORAGE_DRIVER", "file"),
		BackupDriver:    getEnvDefault("BACKUP_DRIVER", "none"),
		StoragePath:     getEnvDefault("STORAGE_PATH", "carechat_state.json"),
		RedisURL:        getEnvDefault("REDIS_URL", "redis://localhost:6379/0"),
	}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
