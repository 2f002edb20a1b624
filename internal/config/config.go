package config

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl           string
	Port            string
	JWTSecret       string
	LogLevel        string
	RateLimit       float64
	RateBurst       int
	DefaultCurrency string
}

// LoadConfig reads .env plus the environment. DB_URL and JWT_SECRET have no
// sane defaults and are rejected when missing.
func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, falling back to environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	currency := os.Getenv("DEFAULT_CURRENCY")
	if currency == "" {
		currency = "USD"
	}

	cfg := Config{
		DBUrl:           os.Getenv("DB_URL"),
		Port:            port,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		RateLimit:       getEnvFloat("RATE_LIMIT", 10),
		RateBurst:       getEnvInt("RATE_BURST", 20),
		DefaultCurrency: currency,
	}

	if cfg.DBUrl == "" {
		return cfg, errors.New("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
