package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
)

// storeState — содержимое фейкового хранилища. Транзакция работает
// с копией, фиксация подменяет состояние целиком.
type storeState struct {
	sites    []domain.Site
	models   []domain.CarModel
	listings []domain.Listing
	prices   []domain.PriceRecord
	images   map[int64][]string
	nextID   int64
}

func (s *storeState) clone() *storeState {
	c := &storeState{
		sites:    append([]domain.Site(nil), s.sites...),
		models:   append([]domain.CarModel(nil), s.models...),
		listings: append([]domain.Listing(nil), s.listings...),
		prices:   append([]domain.PriceRecord(nil), s.prices...),
		images:   make(map[int64][]string, len(s.images)),
		nextID:   s.nextID,
	}
	for id, urls := range s.images {
		c.images[id] = append([]string(nil), urls...)
	}
	return c
}

type fakeStore struct {
	state *storeState
	// failAppendPriceOn > 0 — ошибка на соответствующем по счёту
	// вызове AppendPrice внутри транзакции.
	failAppendPriceOn int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: &storeState{images: map[int64][]string{}}}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx domain.ListingTx) error) error {
	work := f.state.clone()
	if err := fn(&fakeTx{state: work, store: f}); err != nil {
		return err
	}
	f.state = work
	return nil
}

type fakeTx struct {
	state       *storeState
	store       *fakeStore
	appendCalls int
}

func (t *fakeTx) DeactivateMissing(ctx context.Context, externalIDs []int64) (int64, error) {
	present := make(map[int64]bool, len(externalIDs))
	for _, id := range externalIDs {
		present[id] = true
	}
	var count int64
	for i := range t.state.listings {
		if t.state.listings[i].Active && !present[t.state.listings[i].ExternalID] {
			t.state.listings[i].Active = false
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) GetByExternalID(ctx context.Context, externalID int64) (*domain.Listing, error) {
	for i := range t.state.listings {
		if t.state.listings[i].ExternalID == externalID {
			listing := t.state.listings[i]
			return &listing, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) GetOrCreateSite(ctx context.Context, name, url string) (domain.Site, error) {
	for _, site := range t.state.sites {
		if site.Name == name && site.URL == url {
			return site, nil
		}
	}
	t.state.nextID++
	site := domain.Site{ID: t.state.nextID, Name: name, URL: url}
	t.state.sites = append(t.state.sites, site)
	return site, nil
}

func (t *fakeTx) GetOrCreateCarModel(ctx context.Context, brand, model, generation string) (domain.CarModel, error) {
	for _, m := range t.state.models {
		if m.Brand == brand && m.Model == model && m.Generation == generation {
			return m, nil
		}
	}
	t.state.nextID++
	m := domain.CarModel{ID: t.state.nextID, Brand: brand, Model: model, Generation: generation}
	t.state.models = append(t.state.models, m)
	return m, nil
}

func (t *fakeTx) CreateListing(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	t.state.nextID++
	listing.ID = t.state.nextID
	listing.Active = true
	t.state.listings = append(t.state.listings, listing)
	return listing, nil
}

func (t *fakeTx) SaveImages(ctx context.Context, listingID int64, urls []string) error {
	t.state.images[listingID] = append([]string(nil), urls...)
	return nil
}

func (t *fakeTx) LatestPrice(ctx context.Context, listingID int64) (*domain.PriceRecord, error) {
	var last *domain.PriceRecord
	for i := range t.state.prices {
		record := t.state.prices[i]
		if record.ListingID != listingID {
			continue
		}
		if last == nil || record.RecordedAt.After(last.RecordedAt) ||
			(record.RecordedAt.Equal(last.RecordedAt) && record.ID > last.ID) {
			last = &record
		}
	}
	return last, nil
}

func (t *fakeTx) AppendPrice(ctx context.Context, listingID int64, price int64, at time.Time) (domain.PriceRecord, error) {
	t.appendCalls++
	if t.store.failAppendPriceOn > 0 && t.appendCalls == t.store.failAppendPriceOn {
		return domain.PriceRecord{}, fmt.Errorf("хранилище недоступно")
	}
	t.state.nextID++
	record := domain.PriceRecord{ID: t.state.nextID, ListingID: listingID, Price: price, RecordedAt: at}
	t.state.prices = append(t.state.prices, record)
	return record, nil
}

func (t *fakeTx) Reactivate(ctx context.Context, listingID int64) error {
	for i := range t.state.listings {
		if t.state.listings[i].ID == listingID {
			t.state.listings[i].Active = true
			return nil
		}
	}
	return fmt.Errorf("объявление %d не найдено", listingID)
}

func (t *fakeTx) GetSite(ctx context.Context, id int64) (domain.Site, error) {
	for _, site := range t.state.sites {
		if site.ID == id {
			return site, nil
		}
	}
	return domain.Site{}, fmt.Errorf("площадка %d не найдена", id)
}

func (t *fakeTx) GetCarModel(ctx context.Context, id int64) (domain.CarModel, error) {
	for _, m := range t.state.models {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.CarModel{}, fmt.Errorf("модель %d не найдена", id)
}

func snapshotItem(externalID, price int64) domain.SnapshotItem {
	return domain.SnapshotItem{
		ExternalID:  externalID,
		PublishedAt: time.Date(2024, time.August, 16, 0, 0, 0, 0, time.UTC),
		Link:        fmt.Sprintf("https://abw.by/cars/%d", externalID),
		Description: "отличное состояние",
		Price:       price,
		Images:      []string{"https://img.abw.by/1.jpg"},
		Brand:       "Toyota",
		Model:       "Camry",
		Generation:  "XV70",
		Year:        2020,
		SiteName:    "abw.by",
		SiteURL:     "https://abw.by",
	}
}

func newTestService(store domain.ListingStore) *Service {
	s := NewService(store, zerolog.Nop())
	s.now = func() time.Time {
		return time.Date(2024, time.September, 2, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestReconcileCreates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{
		snapshotItem(1, 9800),
		snapshotItem(2, 15000),
	})
	if err != nil {
		t.Fatalf("сверка: %v", err)
	}
	if result.Created != 2 || result.Deactivated != 0 || len(result.Changes) != 0 {
		t.Fatalf("итог: %+v", result)
	}
	if len(store.state.listings) != 2 {
		t.Fatalf("объявления: получили %d", len(store.state.listings))
	}
	if len(store.state.sites) != 1 || len(store.state.models) != 1 {
		t.Fatalf("площадка и модель должны дедуплицироваться: %d площадок, %d моделей",
			len(store.state.sites), len(store.state.models))
	}
	if len(store.state.prices) != 2 {
		t.Fatalf("история цен: получили %d записей", len(store.state.prices))
	}
	// Первая запись истории датируется датой публикации.
	wantDate := time.Date(2024, time.August, 16, 0, 0, 0, 0, time.UTC)
	if !store.state.prices[0].RecordedAt.Equal(wantDate) {
		t.Fatalf("дата начальной цены: получили %v", store.state.prices[0].RecordedAt)
	}
	if len(store.state.images[store.state.listings[0].ID]) != 1 {
		t.Fatalf("изображения не сохранены")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	snapshot := []domain.SnapshotItem{snapshotItem(1, 9800)}

	if _, err := svc.Reconcile(context.Background(), snapshot); err != nil {
		t.Fatalf("первый проход: %v", err)
	}
	result, err := svc.Reconcile(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("второй проход: %v", err)
	}
	if result.Created != 0 || result.Unchanged != 1 || len(result.Changes) != 0 {
		t.Fatalf("повторный проход не должен менять состояние: %+v", result)
	}
	if len(store.state.prices) != 1 {
		t.Fatalf("история цен разрослась: %d записей", len(store.state.prices))
	}
}

func TestReconcileDeactivatesOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9800)}); err != nil {
		t.Fatalf("создание: %v", err)
	}
	result, err := svc.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("пустой снапшот: %v", err)
	}
	if result.Deactivated != 1 {
		t.Fatalf("деактивация: получили %d", result.Deactivated)
	}
	if store.state.listings[0].Active {
		t.Fatalf("объявление осталось активным")
	}
	result, err = svc.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("повторный пустой снапшот: %v", err)
	}
	if result.Deactivated != 0 {
		t.Fatalf("уже неактивное объявление посчитано снова: %d", result.Deactivated)
	}
}

func TestReconcileReactivatesWithPriceChange(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9800)}); err != nil {
		t.Fatalf("создание: %v", err)
	}
	if _, err := svc.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("деактивация: %v", err)
	}
	result, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9500)})
	if err != nil {
		t.Fatalf("реактивация: %v", err)
	}
	if result.Reactivated != 1 {
		t.Fatalf("реактивация: получили %d", result.Reactivated)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("изменения цены: получили %d", len(result.Changes))
	}
	change := result.Changes[0]
	if change.Record.Price != 9500 {
		t.Fatalf("новая цена: получили %d", change.Record.Price)
	}
	if change.Site.Name != "abw.by" || change.CarModel.Brand != "Toyota" {
		t.Fatalf("контекст изменения: %+v", change)
	}
	if !store.state.listings[0].Active {
		t.Fatalf("объявление не реактивировано")
	}
	if len(store.state.prices) != 2 {
		t.Fatalf("история цен: получили %d записей", len(store.state.prices))
	}
}

func TestReconcileReactivatesSamePrice(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9800)}); err != nil {
		t.Fatalf("создание: %v", err)
	}
	if _, err := svc.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("деактивация: %v", err)
	}
	result, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9800)})
	if err != nil {
		t.Fatalf("реактивация: %v", err)
	}
	if result.Reactivated != 1 || len(result.Changes) != 0 || result.Unchanged != 1 {
		t.Fatalf("равная цена не должна давать изменение: %+v", result)
	}
	if len(store.state.prices) != 1 {
		t.Fatalf("история цен разрослась: %d записей", len(store.state.prices))
	}
}

func TestReconcileComparesPriceOfActiveListing(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9800)}); err != nil {
		t.Fatalf("создание: %v", err)
	}
	result, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{snapshotItem(1, 9000)})
	if err != nil {
		t.Fatalf("проход с новой ценой: %v", err)
	}
	if result.Reactivated != 0 {
		t.Fatalf("активное объявление посчитано реактивированным")
	}
	if len(result.Changes) != 1 || result.Changes[0].Record.Price != 9000 {
		t.Fatalf("изменение цены активного объявления: %+v", result.Changes)
	}
}

func TestReconcileRollsBackOnError(t *testing.T) {
	store := newFakeStore()
	store.failAppendPriceOn = 2
	svc := newTestService(store)

	_, err := svc.Reconcile(context.Background(), []domain.SnapshotItem{
		snapshotItem(1, 9800),
		snapshotItem(2, 15000),
	})
	if err == nil {
		t.Fatalf("ожидали ошибку транзакции")
	}
	if len(store.state.listings) != 0 || len(store.state.prices) != 0 {
		t.Fatalf("транзакция не откатилась: %d объявлений, %d цен",
			len(store.state.listings), len(store.state.prices))
	}
}
