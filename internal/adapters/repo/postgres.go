package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ListingStore = (*Postgres)(nil)
	_ domain.FavoriteRepo = (*Postgres)(nil)
	_ domain.UserRepo     = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// InTx выполняет fn в одной транзакции: либо фиксируются все записи
// прохода сверки, либо ни одна. Откат при любой ошибке fn.
func (p *Postgres) InTx(ctx context.Context, fn func(tx domain.ListingTx) error) error {
	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "listings", start, err)
	if err != nil {
		return fmt.Errorf("открытие транзакции: %w", err)
	}
	if err := fn(&listingTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "listings", start, err)
	if err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

// listingTx реализует domain.ListingTx поверх pgx.Tx.
type listingTx struct {
	tx pgx.Tx
}

const listingColumns = `id, external_id, published_at, link, description, engine_type, engine_hp, engine_volume, transmission, drive, mileage, year, active, site_id, car_model_id, created_at, updated_at`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	var volume sql.NullString
	err := row.Scan(&l.ID, &l.ExternalID, &l.PublishedAt, &l.Link, &l.Description,
		&l.Attributes.EngineType, &l.Attributes.EngineHP, &volume,
		&l.Attributes.Transmission, &l.Attributes.Drive, &l.Attributes.Mileage,
		&l.Year, &l.Active, &l.SiteID, &l.CarModelID, &l.CreatedAt, &l.UpdatedAt)
	if volume.Valid {
		l.Attributes.EngineVolume = volume.String
	}
	return l, err
}

// DeactivateMissing помечает неактивными все активные объявления, чьих
// внешних идентификаторов нет в снапшоте. Уже неактивные не трогаются.
func (t *listingTx) DeactivateMissing(ctx context.Context, externalIDs []int64) (int64, error) {
	start := time.Now()
	res, err := t.tx.Exec(ctx, `
UPDATE listings SET active=false, updated_at=now()
WHERE active AND NOT (external_id = ANY($1))
`, externalIDs)
	metrics.ObserveNetworkRequest("postgres", "listings_deactivate_missing", "listings", start, err)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// GetByExternalID возвращает объявление или nil, если его ещё нет.
func (t *listingTx) GetByExternalID(ctx context.Context, externalID int64) (*domain.Listing, error) {
	start := time.Now()
	row := t.tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE external_id=$1`, externalID)
	l, err := scanListing(row)
	metrics.ObserveNetworkRequest("postgres", "listings_get_by_external_id", "listings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetOrCreateSite возвращает площадку по натуральному ключу, создавая
// её при первом обращении. Дубликаты исключены upsert-ом.
func (t *listingTx) GetOrCreateSite(ctx context.Context, name, url string) (domain.Site, error) {
	var site domain.Site
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
INSERT INTO sites (name, url) VALUES ($1, $2)
ON CONFLICT (name, url) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, url
`, name, url).Scan(&site.ID, &site.Name, &site.URL)
	metrics.ObserveNetworkRequest("postgres", "sites_upsert", "sites", start, err)
	return site, err
}

// GetOrCreateCarModel возвращает модель по натуральному ключу, создавая
// её при первом обращении.
func (t *listingTx) GetOrCreateCarModel(ctx context.Context, brand, model, generation string) (domain.CarModel, error) {
	var cm domain.CarModel
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
INSERT INTO car_models (brand, model, generation) VALUES ($1, $2, $3)
ON CONFLICT (brand, model, generation) DO UPDATE SET brand = EXCLUDED.brand
RETURNING id, brand, model, generation
`, brand, model, generation).Scan(&cm.ID, &cm.Brand, &cm.Model, &cm.Generation)
	metrics.ObserveNetworkRequest("postgres", "car_models_upsert", "car_models", start, err)
	return cm, err
}

// CreateListing сохраняет новое объявление в активном состоянии.
func (t *listingTx) CreateListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
INSERT INTO listings (external_id, published_at, link, description, engine_type, engine_hp, engine_volume, transmission, drive, mileage, year, active, site_id, car_model_id)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, true, $12, $13)
RETURNING id, created_at, updated_at
`, l.ExternalID, l.PublishedAt, l.Link, l.Description,
		l.Attributes.EngineType, l.Attributes.EngineHP, l.Attributes.EngineVolume,
		l.Attributes.Transmission, l.Attributes.Drive, l.Attributes.Mileage,
		l.Year, l.SiteID, l.CarModelID).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "listings_insert", "listings", start, err)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Active = true
	return l, nil
}

// SaveImages сохраняет ссылки на изображения объявления.
func (t *listingTx) SaveImages(ctx context.Context, listingID int64, urls []string) error {
	start := time.Now()
	var err error
	for _, url := range urls {
		if _, err = t.tx.Exec(ctx, `INSERT INTO listing_images (listing_id, url) VALUES ($1, $2)`, listingID, url); err != nil {
			break
		}
	}
	metrics.ObserveNetworkRequest("postgres", "listing_images_insert", "listing_images", start, err)
	return err
}

// LatestPrice возвращает последнюю запись истории цены или nil,
// если истории ещё нет.
func (t *listingTx) LatestPrice(ctx context.Context, listingID int64) (*domain.PriceRecord, error) {
	var rec domain.PriceRecord
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
SELECT id, listing_id, price, recorded_at
FROM listing_prices
WHERE listing_id=$1
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`, listingID).Scan(&rec.ID, &rec.ListingID, &rec.Price, &rec.RecordedAt)
	metrics.ObserveNetworkRequest("postgres", "listing_prices_latest", "listing_prices", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendPrice добавляет запись истории цены. Существующие записи
// никогда не изменяются и не удаляются.
func (t *listingTx) AppendPrice(ctx context.Context, listingID int64, price int64, at time.Time) (domain.PriceRecord, error) {
	rec := domain.PriceRecord{ListingID: listingID, Price: price, RecordedAt: at}
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
INSERT INTO listing_prices (listing_id, price, recorded_at) VALUES ($1, $2, $3)
RETURNING id
`, listingID, price, at).Scan(&rec.ID)
	metrics.ObserveNetworkRequest("postgres", "listing_prices_insert", "listing_prices", start, err)
	if err != nil {
		return domain.PriceRecord{}, err
	}
	return rec, nil
}

// Reactivate возвращает объявление в активное состояние.
func (t *listingTx) Reactivate(ctx context.Context, listingID int64) error {
	start := time.Now()
	_, err := t.tx.Exec(ctx, `UPDATE listings SET active=true, updated_at=now() WHERE id=$1`, listingID)
	metrics.ObserveNetworkRequest("postgres", "listings_reactivate", "listings", start, err)
	return err
}

// GetSite возвращает площадку по идентификатору.
func (t *listingTx) GetSite(ctx context.Context, id int64) (domain.Site, error) {
	var site domain.Site
	start := time.Now()
	err := t.tx.QueryRow(ctx, `SELECT id, name, url FROM sites WHERE id=$1`, id).Scan(&site.ID, &site.Name, &site.URL)
	metrics.ObserveNetworkRequest("postgres", "sites_get", "sites", start, err)
	return site, err
}

// GetCarModel возвращает модель по идентификатору.
func (t *listingTx) GetCarModel(ctx context.Context, id int64) (domain.CarModel, error) {
	var cm domain.CarModel
	start := time.Now()
	err := t.tx.QueryRow(ctx, `SELECT id, brand, model, generation FROM car_models WHERE id=$1`, id).Scan(&cm.ID, &cm.Brand, &cm.Model, &cm.Generation)
	metrics.ObserveNetworkRequest("postgres", "car_models_get", "car_models", start, err)
	return cm, err
}

// ListFavoriteUsers возвращает пользователей, добавивших объявление
// в избранное. Избранное здесь только читается.
func (p *Postgres) ListFavoriteUsers(ctx context.Context, listingID int64) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT u.id, u.username, u.email, u.tg_chat_id
FROM users u
JOIN favorites f ON f.user_id = u.id
WHERE f.listing_id = $1
`, listingID)
	metrics.ObserveNetworkRequest("postgres", "favorites_list_users", "favorites", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		var chat sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &chat); err != nil {
			return nil, err
		}
		if chat.Valid {
			id := chat.Int64
			u.TGChatID = &id
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// BindTGChat привязывает Telegram-чат к пользователю. Возвращает false,
// если пользователя с таким идентификатором нет. Повторная привязка
// того же чата безопасна.
func (p *Postgres) BindTGChat(ctx context.Context, userID, chatID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `UPDATE users SET tg_chat_id=$2 WHERE id=$1`, userID, chatID)
	metrics.ObserveNetworkRequest("postgres", "users_bind_tg_chat", "users", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}
