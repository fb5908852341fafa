package domain

import "time"

// JobKind определяет тип фонового задания.
type JobKind string

const (
	// JobKindCrawl — полный проход пайплайна: выгрузка, сверка, уведомления.
	JobKindCrawl JobKind = "crawl"
	// JobKindChannelSync — привязка Telegram-чатов к пользователям.
	JobKindChannelSync JobKind = "channel_sync"
)

// Job — задание, которое планировщик кладёт в очередь.
type Job struct {
	ID          string    `json:"id"`
	Kind        JobKind   `json:"kind"`
	RequestedAt time.Time `json:"requested_at"`
}
