package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr  string        `env:"SALON_ADDR,default=:8090"`
	DBPath      string        `env:"SALON_DB,default=salon.db"`
	BotSecret   string        `env:"SALON_BOT_SECRET,default=5001"`
	ProviderURL string        `env:"SALON_PROVIDER_URL,default=https://api.openai.com/v1"`
	ProviderKey string        `env:"OPENAI_API_KEY"`
	Model       string        `env:"SALON_MODEL,default=gpt-3.5-turbo"`
	PersonaFile string        `env:"SALON_PERSONAS"`
	CallGap     time.Duration `env:"SALON_CALL_GAP,default=1100ms"`
	LogLevel    string        `env:"SALON_LOG_LEVEL,default=info"`
}

func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	// Railway, Render, etc. set PORT
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SALON_ADDR") == "" {
		cfg.ListenAddr = ":" + port
	}
	return cfg, nil
}
