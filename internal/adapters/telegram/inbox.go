package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Inbox опрашивает входящие сообщения бота через getUpdates.
type Inbox struct {
	bot *tgbotapi.BotAPI
}

// NewInbox создаёт опросчик входящих.
func NewInbox(bot *tgbotapi.BotAPI) *Inbox {
	return &Inbox{bot: bot}
}

var _ domain.InboxPoller = (*Inbox)(nil)

// Poll возвращает входящие сообщения начиная с offset и следующую
// позицию чтения. Обновления без текстового сообщения пропускаются,
// но позицию чтения сдвигают, чтобы не перечитываться вечно.
func (i *Inbox) Poll(ctx context.Context, offset int64) ([]domain.InboxMessage, int64, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	start := time.Now()
	updates, err := i.bot.GetUpdates(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "get_updates", "inbox", start, err)
	if err != nil {
		return nil, offset, err
	}
	next := offset
	msgs := make([]domain.InboxMessage, 0, len(updates))
	for _, upd := range updates {
		if id := int64(upd.UpdateID) + 1; id > next {
			next = id
		}
		if upd.Message == nil {
			continue
		}
		msgs = append(msgs, domain.InboxMessage{
			UpdateID: int64(upd.UpdateID),
			ChatID:   upd.Message.Chat.ID,
			Text:     upd.Message.Text,
		})
	}
	return msgs, next, nil
}
