package chanlink

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Пользователь отправляет боту «/start <id>», где id выдан ему
// в профиле сервиса.
const bindPrefix = "/start"

const offsetKey = "tg:updates:offset"

// Service привязывает Telegram-чаты к пользователям по входящим
// сообщениям бота.
type Service struct {
	inbox   domain.InboxPoller
	users   domain.UserRepo
	offsets domain.OffsetStore
	log     zerolog.Logger
}

// NewService создаёт сервис привязки чатов.
func NewService(inbox domain.InboxPoller, users domain.UserRepo, offsets domain.OffsetStore, logger zerolog.Logger) *Service {
	return &Service{inbox: inbox, users: users, offsets: offsets, log: logger}
}

// Sync обрабатывает новые входящие сообщения. Сообщения с неразборчивым
// или неизвестным идентификатором молча пропускаются. Позиция чтения
// сохраняется после обработки всей пачки, поэтому повторный запуск по
// тому же состоянию ящика даёт ту же привязку.
func (s *Service) Sync(ctx context.Context) error {
	offset, err := s.offsets.GetOffset(ctx, offsetKey)
	if err != nil {
		return fmt.Errorf("чтение позиции: %w", err)
	}
	messages, next, err := s.inbox.Poll(ctx, offset)
	if err != nil {
		return fmt.Errorf("опрос входящих: %w", err)
	}
	for _, msg := range messages {
		userID, ok := parseUserID(msg.Text)
		if !ok {
			continue
		}
		bound, err := s.users.BindTGChat(ctx, userID, msg.ChatID)
		if err != nil {
			return fmt.Errorf("привязка пользователя %d: %w", userID, err)
		}
		if !bound {
			s.log.Debug().Int64("user", userID).Msg("chanlink: пользователь не найден")
			continue
		}
		metrics.ChatBindings.Inc()
		s.log.Info().Int64("user", userID).Int64("chat", msg.ChatID).Msg("chanlink: чат привязан")
	}
	if next > offset {
		if err := s.offsets.SetOffset(ctx, offsetKey, next); err != nil {
			return fmt.Errorf("сохранение позиции: %w", err)
		}
	}
	return nil
}

// parseUserID извлекает числовой идентификатор пользователя из текста
// сообщения по фиксированному префиксу.
func parseUserID(text string) (int64, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, bindPrefix) {
		return 0, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, bindPrefix))
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
