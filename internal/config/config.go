package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=fintrack port=5432 sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set, refusing to start")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}
	if cfg.DatabaseDSN == "host=localhost user=postgres password=postgres dbname=fintrack port=5432 sslmode=disable" {
		log.Println("[WARN] DATABASE_DSN is the development default, set your own for production")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
