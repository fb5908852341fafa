package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Service сверяет снапшот источника с хранилищем объявлений.
//
// Состояния одного объявления: активное → неактивное (пропало из
// снапшота) → активное (появилось снова). Объявления не удаляются,
// история цен только пополняется.
type Service struct {
	store domain.ListingStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewService создаёт сервис сверки.
func NewService(store domain.ListingStore, logger zerolog.Logger) *Service {
	return &Service{store: store, log: logger, now: time.Now}
}

// Reconcile выполняет один проход сверки в одной транзакции: либо
// фиксируются все записи прохода, либо ни одна. Изменения цен
// возвращаются вызывающему — уведомления должны уходить только после
// успешной фиксации.
func (s *Service) Reconcile(ctx context.Context, snapshot []domain.SnapshotItem) (domain.ReconcileResult, error) {
	start := time.Now()
	var result domain.ReconcileResult
	err := s.store.InTx(ctx, func(tx domain.ListingTx) error {
		externalIDs := make([]int64, 0, len(snapshot))
		for _, item := range snapshot {
			externalIDs = append(externalIDs, item.ExternalID)
		}
		deactivated, err := tx.DeactivateMissing(ctx, externalIDs)
		if err != nil {
			return fmt.Errorf("деактивация пропавших: %w", err)
		}
		result.Deactivated = int(deactivated)

		for _, item := range snapshot {
			listing, err := tx.GetByExternalID(ctx, item.ExternalID)
			if err != nil {
				return fmt.Errorf("поиск объявления %d: %w", item.ExternalID, err)
			}
			if listing == nil {
				if err := s.createListing(ctx, tx, item); err != nil {
					return err
				}
				result.Created++
				continue
			}
			wasActive := listing.Active
			change, err := s.refreshListing(ctx, tx, *listing, item)
			if err != nil {
				return err
			}
			if !wasActive {
				result.Reactivated++
			}
			if change != nil {
				result.Changes = append(result.Changes, *change)
			} else {
				result.Unchanged++
			}
		}
		return nil
	})
	metrics.ReconcileSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	metrics.PriceChanges.Add(float64(len(result.Changes)))
	return result, nil
}

func (s *Service) createListing(ctx context.Context, tx domain.ListingTx, item domain.SnapshotItem) error {
	site, err := tx.GetOrCreateSite(ctx, item.SiteName, item.SiteURL)
	if err != nil {
		return fmt.Errorf("площадка %s: %w", item.SiteName, err)
	}
	model, err := tx.GetOrCreateCarModel(ctx, item.Brand, item.Model, item.Generation)
	if err != nil {
		return fmt.Errorf("модель %s %s: %w", item.Brand, item.Model, err)
	}
	listing, err := tx.CreateListing(ctx, domain.Listing{
		ExternalID:  item.ExternalID,
		PublishedAt: item.PublishedAt,
		Link:        item.Link,
		Description: item.Description,
		Attributes:  item.Attributes,
		Year:        item.Year,
		SiteID:      site.ID,
		CarModelID:  model.ID,
	})
	if err != nil {
		return fmt.Errorf("создание объявления %d: %w", item.ExternalID, err)
	}
	if err := tx.SaveImages(ctx, listing.ID, item.Images); err != nil {
		return fmt.Errorf("изображения объявления %d: %w", item.ExternalID, err)
	}
	// Первая запись истории датируется датой публикации объявления.
	if _, err := tx.AppendPrice(ctx, listing.ID, item.Price, item.PublishedAt); err != nil {
		return fmt.Errorf("начальная цена объявления %d: %w", item.ExternalID, err)
	}
	return nil
}

// refreshListing реактивирует неактивное объявление и сравнивает цену
// с последней записью истории. Цена сравнивается и у непрерывно
// активных объявлений: площадка меняет цену без снятия объявления.
// Равная цена — no-op.
func (s *Service) refreshListing(ctx context.Context, tx domain.ListingTx, listing domain.Listing, item domain.SnapshotItem) (*domain.PriceChange, error) {
	if !listing.Active {
		if err := tx.Reactivate(ctx, listing.ID); err != nil {
			return nil, fmt.Errorf("реактивация объявления %d: %w", listing.ExternalID, err)
		}
		listing.Active = true
	}
	last, err := tx.LatestPrice(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("последняя цена объявления %d: %w", listing.ExternalID, err)
	}
	if last != nil && last.Price == item.Price {
		return nil, nil
	}
	record, err := tx.AppendPrice(ctx, listing.ID, item.Price, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("новая цена объявления %d: %w", listing.ExternalID, err)
	}
	site, err := tx.GetSite(ctx, listing.SiteID)
	if err != nil {
		return nil, fmt.Errorf("площадка объявления %d: %w", listing.ExternalID, err)
	}
	model, err := tx.GetCarModel(ctx, listing.CarModelID)
	if err != nil {
		return nil, fmt.Errorf("модель объявления %d: %w", listing.ExternalID, err)
	}
	return &domain.PriceChange{Listing: listing, Site: site, CarModel: model, Record: record}, nil
}
