package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tonykorol/tms-dproject/internal/adapters/abw"
	"github.com/tonykorol/tms-dproject/internal/adapters/repo"
	"github.com/tonykorol/tms-dproject/internal/adapters/telegram"
	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/cache"
	"github.com/tonykorol/tms-dproject/internal/infra/config"
	"github.com/tonykorol/tms-dproject/internal/infra/db"
	apphttp "github.com/tonykorol/tms-dproject/internal/infra/http"
	applog "github.com/tonykorol/tms-dproject/internal/infra/log"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
	"github.com/tonykorol/tms-dproject/internal/infra/queue"
	"github.com/tonykorol/tms-dproject/internal/usecase/chanlink"
	"github.com/tonykorol/tms-dproject/internal/usecase/ingest"
	"github.com/tonykorol/tms-dproject/internal/usecase/notify"
	"github.com/tonykorol/tms-dproject/internal/usecase/reconcile"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger("scraper", cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := apphttp.NewServer(logger.With().Str("component", "http").Logger())
	go func() {
		if err := httpServer.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("scraper: HTTP сервер остановлен")
		}
	}()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	offsets := cache.NewRedisOffsets(redisClient)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("scraper: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: не удалось создать бота")
	}

	jobs, err := queue.NewRabbitJobQueue(cfg.RabbitURL, cfg.Queues.Jobs)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: нет подключения к RabbitMQ")
	}
	defer jobs.Close()

	client := abw.NewClient(logger.With().Str("component", "abw").Logger(), cfg.Scrape.Delay)
	parser := abw.NewParser(abw.NewRussianDates(nil))
	source := abw.NewSource(client, parser, cfg.Scrape.Pages, logger.With().Str("component", "abw").Logger())

	reconciler := reconcile.NewService(repoAdapter, logger.With().Str("component", "reconcile").Logger())
	notifier := notify.NewService(repoAdapter, telegram.NewSender(botAPI), logger.With().Str("component", "notify").Logger())
	pipeline := ingest.NewService(source, reconciler, notifier, logger.With().Str("component", "ingest").Logger())
	linker := chanlink.NewService(telegram.NewInbox(botAPI), repoAdapter, offsets, logger.With().Str("component", "chanlink").Logger())

	logger.Info().Msg("scraper: запуск обработки очереди")
	err = jobs.Consume(ctx, func(ctx context.Context, job domain.Job) {
		jobLog := logger.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()
		switch job.Kind {
		case domain.JobKindCrawl:
			if err := pipeline.Run(ctx); err != nil {
				jobLog.Error().Err(err).Msg("scraper: запуск пайплайна завершился ошибкой")
			}
		case domain.JobKindChannelSync:
			if err := linker.Sync(ctx); err != nil {
				jobLog.Error().Err(err).Msg("scraper: синхронизация чатов завершилась ошибкой")
			}
		default:
			jobLog.Warn().Msg("scraper: неизвестный тип задания")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("scraper: обработка очереди прервана")
	}
	_ = httpServer.Shutdown(context.Background())
	logger.Info().Msg("scraper: остановлен")
}
