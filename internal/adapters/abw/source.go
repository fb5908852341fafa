package abw

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// Source собирает полный снапшот объявлений площадки за один проход:
// постраничная выгрузка, разбор каждого элемента, пропуск бракованных.
type Source struct {
	client *Client
	parser *Parser
	pages  int
	log    zerolog.Logger
}

// NewSource создаёт источник; pages ограничивает число страниц (0 — все).
func NewSource(client *Client, parser *Parser, pages int, logger zerolog.Logger) *Source {
	return &Source{client: client, parser: parser, pages: pages, log: logger}
}

var _ domain.Source = (*Source)(nil)

// Snapshot реализует domain.Source. Бракованное объявление пропускается
// с записью сырого содержимого в лог, остальные попадают в снапшот.
func (s *Source) Snapshot(ctx context.Context) ([]domain.SnapshotItem, error) {
	raw, err := s.client.FetchPages(ctx, s.pages)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SnapshotItem, 0, len(raw))
	for _, payload := range raw {
		item, err := s.parser.Parse(payload)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, domain.ErrPriceParse) {
				reason = "price"
			}
			metrics.ListingsSkipped.WithLabelValues(reason).Inc()
			s.log.Warn().Err(err).RawJSON("payload", payload).Msg("abw: объявление пропущено")
			continue
		}
		metrics.ListingsParsed.Inc()
		items = append(items, item)
	}
	return items, nil
}
