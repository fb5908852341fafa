package domain

import "time"

// Site описывает площадку-источник объявлений.
type Site struct {
	ID   int64
	Name string
	URL  string
}

// CarModel описывает модель автомобиля: марка, модель, поколение.
// Дедуплицируется по натуральному ключу из этих трёх полей.
type CarModel struct {
	ID         int64
	Brand      string
	Model      string
	Generation string
}

// CarAttributes содержит характеристики, извлечённые из свободного текста
// объявления. Ненайденная характеристика остаётся пустой строкой.
type CarAttributes struct {
	EngineType   string
	EngineHP     string
	EngineVolume string
	Transmission string
	Drive        string
	Mileage      string
	BodyType     string
}

// SnapshotItem — одно объявление из текущего прохода источника.
// Живёт только внутри одного запуска пайплайна и после создания
// не изменяется.
type SnapshotItem struct {
	ExternalID  int64
	PublishedAt time.Time
	Link        string
	Description string
	Attributes  CarAttributes
	Price       int64
	Images      []string
	Brand       string
	Model       string
	Generation  string
	Year        int
	SiteName    string
	SiteURL     string
}

// Listing — сохранённое объявление. Физически не удаляется:
// пропавшее из снапшота объявление деактивируется, появившееся
// снова — реактивируется. Внешний идентификатор уникален.
type Listing struct {
	ID          int64
	ExternalID  int64
	PublishedAt time.Time
	Link        string
	Description string
	Attributes  CarAttributes
	Year        int
	Active      bool
	SiteID      int64
	CarModelID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PriceRecord — запись истории цены. История только пополняется,
// записи не изменяются и не удаляются.
type PriceRecord struct {
	ID         int64
	ListingID  int64
	Price      int64
	RecordedAt time.Time
}

// User — пользователь сервиса. Создаётся слоем API; здесь читается,
// а TGChatID выставляется синхронизацией Telegram-чатов.
type User struct {
	ID       int64
	Username string
	Email    string
	TGChatID *int64
}

// PriceChange описывает зафиксированное в хранилище изменение цены.
type PriceChange struct {
	Listing  Listing
	Site     Site
	CarModel CarModel
	Record   PriceRecord
}

// ReconcileResult — итог одного прохода сверки снапшота с хранилищем.
type ReconcileResult struct {
	Created     int
	Reactivated int
	Deactivated int
	Unchanged   int
	Changes     []PriceChange
}

// InboxMessage — входящее сообщение бота.
type InboxMessage struct {
	UpdateID int64
	ChatID   int64
	Text     string
}
