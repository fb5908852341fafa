package domain

import (
	"context"
	"time"
)

// Source выгружает полный снапшот объявлений за один проход.
type Source interface {
	Snapshot(ctx context.Context) ([]SnapshotItem, error)
}

// ListingTx — операции над хранилищем объявлений в рамках одной транзакции.
type ListingTx interface {
	DeactivateMissing(ctx context.Context, externalIDs []int64) (int64, error)
	GetByExternalID(ctx context.Context, externalID int64) (*Listing, error)
	GetOrCreateSite(ctx context.Context, name, url string) (Site, error)
	GetOrCreateCarModel(ctx context.Context, brand, model, generation string) (CarModel, error)
	CreateListing(ctx context.Context, listing Listing) (Listing, error)
	SaveImages(ctx context.Context, listingID int64, urls []string) error
	LatestPrice(ctx context.Context, listingID int64) (*PriceRecord, error)
	AppendPrice(ctx context.Context, listingID int64, price int64, at time.Time) (PriceRecord, error)
	Reactivate(ctx context.Context, listingID int64) error
	GetSite(ctx context.Context, id int64) (Site, error)
	GetCarModel(ctx context.Context, id int64) (CarModel, error)
}

// ListingStore выполняет fn в одной транзакции: либо фиксируются
// все записи прохода, либо ни одна.
type ListingStore interface {
	InTx(ctx context.Context, fn func(tx ListingTx) error) error
}

// FavoriteRepo возвращает пользователей, добавивших объявление в избранное.
// Избранное наполняет слой API; здесь оно только читается.
type FavoriteRepo interface {
	ListFavoriteUsers(ctx context.Context, listingID int64) ([]User, error)
}

// UserRepo управляет привязкой Telegram-чата к пользователю.
type UserRepo interface {
	BindTGChat(ctx context.Context, userID, chatID int64) (bool, error)
}

// MessageSender отправляет текст в чат Telegram.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// InboxPoller возвращает входящие сообщения начиная с позиции offset
// и следующую позицию чтения.
type InboxPoller interface {
	Poll(ctx context.Context, offset int64) ([]InboxMessage, int64, error)
}

// OffsetStore хранит позицию чтения внешней ленты между запусками.
type OffsetStore interface {
	GetOffset(ctx context.Context, key string) (int64, error)
	SetOffset(ctx context.Context, key string, offset int64) error
}

// JobQueue — очередь заданий между планировщиком и воркером.
// Единственный потребитель очереди выполняет задания последовательно,
// поэтому два прохода пайплайна не работают с хранилищем одновременно.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	Consume(ctx context.Context, fn func(ctx context.Context, job Job)) error
}
