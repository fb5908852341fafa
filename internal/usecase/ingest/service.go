package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/usecase/notify"
	"github.com/tonykorol/tms-dproject/internal/usecase/reconcile"
)

// Service выполняет один запуск пайплайна: снапшот источника, сверка
// с хранилищем, уведомления об изменениях цен.
type Service struct {
	source     domain.Source
	reconciler *reconcile.Service
	notifier   *notify.Service
	log        zerolog.Logger
}

// NewService создаёт сервис пайплайна.
func NewService(source domain.Source, reconciler *reconcile.Service, notifier *notify.Service, logger zerolog.Logger) *Service {
	return &Service{source: source, reconciler: reconciler, notifier: notifier, log: logger}
}

// Run выполняет один запуск. Ошибка означает, что записи прохода
// откатились целиком; следующий запуск по расписанию начнёт с чистого
// состояния. Уведомления уходят после фиксации транзакции.
func (s *Service) Run(ctx context.Context) error {
	started := time.Now()
	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("снапшот источника: %w", err)
	}
	result, err := s.reconciler.Reconcile(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("сверка снапшота: %w", err)
	}
	for _, change := range result.Changes {
		if err := s.notifier.NotifyPriceChange(ctx, change); err != nil {
			s.log.Error().Err(err).Int64("listing", change.Listing.ExternalID).Msg("ingest: уведомление не разослано")
		}
	}
	s.log.Info().
		Int("snapshot", len(snapshot)).
		Int("created", result.Created).
		Int("reactivated", result.Reactivated).
		Int("deactivated", result.Deactivated).
		Int("price_changes", len(result.Changes)).
		Dur("took", time.Since(started)).
		Msg("ingest: запуск завершён")
	return nil
}
