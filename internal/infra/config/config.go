package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	TZ       string `envconfig:"TZ" default:"Europe/Minsk"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	Scrape struct {
		// Pages ограничивает число выгружаемых страниц; 0 — все страницы
		// по метаданным пагинации источника.
		Pages    int           `envconfig:"SCRAPE_PAGES" default:"0"`
		Delay    time.Duration `envconfig:"SCRAPE_DELAY" default:"2s"`
		Interval time.Duration `envconfig:"SCRAPE_INTERVAL" default:"1h"`
	} `envconfig:""`

	ChannelSync struct {
		Interval time.Duration `envconfig:"CHANNEL_SYNC_INTERVAL" default:"1h"`
	} `envconfig:""`

	Queues struct {
		Jobs string `envconfig:"JOBS_QUEUE" default:"scraper_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения и .env, если он есть.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
