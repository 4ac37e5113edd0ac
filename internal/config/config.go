// Package config содержит логику чтения конфигурации бота.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации бота.
type Config struct {
	BotToken       string `env:"BOT_TOKEN"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RunAddress     string `env:"RUN_ADDRESS"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL"`
	PollTimeout    int    `env:"POLL_TIMEOUT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения; значения окружения имеют приоритет. Файл .env, если он есть,
// подгружается до разбора.
func Parse() (*Config, error) {
	// .env опционален, его отсутствие не ошибка.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envBotToken := cfg.BotToken
	envDatabaseURI := cfg.DatabaseURI
	envRunAddress := cfg.RunAddress
	envWebhookURL := cfg.WebhookURL
	envWebhookSecret := cfg.WebhookSecret
	envTelegramAPIURL := cfg.TelegramAPIURL
	envPollTimeout := cfg.PollTimeout

	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for webhook HTTP server")
	flag.StringVar(&cfg.WebhookURL, "w", "", "public webhook URL (empty enables long polling)")
	flag.StringVar(&cfg.WebhookSecret, "s", "", "webhook secret token")
	flag.StringVar(&cfg.TelegramAPIURL, "u", "", "telegram Bot API base URL")
	flag.IntVar(&cfg.PollTimeout, "p", 30, "long polling timeout in seconds")

	flag.Parse()

	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envWebhookURL != "" {
		cfg.WebhookURL = envWebhookURL
	}
	if envWebhookSecret != "" {
		cfg.WebhookSecret = envWebhookSecret
	}
	if envTelegramAPIURL != "" {
		cfg.TelegramAPIURL = envTelegramAPIURL
	}
	if envPollTimeout != 0 {
		cfg.PollTimeout = envPollTimeout
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}

	return cfg, nil
}
