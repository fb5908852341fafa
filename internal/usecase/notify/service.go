package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Service рассылает уведомления об изменении цены пользователям,
// добавившим объявление в избранное и привязавшим Telegram-чат.
type Service struct {
	favorites domain.FavoriteRepo
	sender    domain.MessageSender
	log       zerolog.Logger
}

// NewService создаёт сервис уведомлений.
func NewService(favorites domain.FavoriteRepo, sender domain.MessageSender, logger zerolog.Logger) *Service {
	return &Service{favorites: favorites, sender: sender, log: logger}
}

// NotifyPriceChange отправляет сообщение каждому получателю в отдельной
// горутине: доставки независимы, сбой у одного получателя не мешает
// остальным. Повторов и очереди нет.
func (s *Service) NotifyPriceChange(ctx context.Context, change domain.PriceChange) error {
	users, err := s.favorites.ListFavoriteUsers(ctx, change.Listing.ID)
	if err != nil {
		return fmt.Errorf("получатели объявления %d: %w", change.Listing.ExternalID, err)
	}
	text := FormatPriceChange(change)
	var wg sync.WaitGroup
	for _, user := range users {
		if user.TGChatID == nil {
			continue
		}
		chatID := *user.TGChatID
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.sender.SendText(ctx, chatID, text); err != nil {
				metrics.NotificationErrors.Inc()
				s.log.Error().Err(err).Int64("chat", chatID).Int64("listing", change.Listing.ExternalID).Msg("notify: не удалось отправить сообщение")
				return
			}
			metrics.NotificationsSent.Inc()
		}()
	}
	wg.Wait()
	return nil
}
