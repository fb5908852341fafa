package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/config"
	applog "github.com/tonykorol/tms-dproject/internal/infra/log"
	"github.com/tonykorol/tms-dproject/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger("scheduler", cfg.AppEnv)

	jobs, err := queue.NewRabbitJobQueue(cfg.RabbitURL, cfg.Queues.Jobs)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к RabbitMQ")
	}
	defer jobs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enqueue := func(kind domain.JobKind) {
		job := domain.Job{ID: uuid.NewString(), Kind: kind, RequestedAt: time.Now().UTC()}
		if err := jobs.Enqueue(ctx, job); err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("scheduler: не удалось поставить задание")
			return
		}
		logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Msg("scheduler: задание поставлено")
	}

	crawl := time.NewTicker(cfg.Scrape.Interval)
	defer crawl.Stop()
	channelSync := time.NewTicker(cfg.ChannelSync.Interval)
	defer channelSync.Stop()

	enqueue(domain.JobKindChannelSync)
	enqueue(domain.JobKindCrawl)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановлен")
			return
		case <-crawl.C:
			enqueue(domain.JobKindCrawl)
		case <-channelSync.C:
			enqueue(domain.JobKindChannelSync)
		}
	}
}
