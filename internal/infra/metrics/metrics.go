package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_fetched_total",
		Help: "Успешно выгруженные страницы источника",
	})
	PageErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_page_errors_total",
		Help: "Страницы, пропущенные из-за ошибок выгрузки",
	})
	ListingsParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_listings_parsed_total",
		Help: "Объявления, успешно разобранные в запись снапшота",
	})
	ListingsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_listings_skipped_total",
		Help: "Объявления, пропущенные при разборе",
	}, []string{"reason"})
	ReconcileSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_reconcile_seconds",
		Help:    "Время одного прохода сверки снапшота",
		Buckets: prometheus.DefBuckets,
	})
	PriceChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_price_changes_total",
		Help: "Зафиксированные изменения цен",
	})
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_messages_sent_total",
		Help: "Отправленные уведомления об изменении цены",
	})
	NotificationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_send_errors_total",
		Help: "Ошибки доставки уведомлений",
	})
	ChatBindings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chanlink_bindings_total",
		Help: "Привязанные Telegram-чаты",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PagesFetched,
		PageErrors,
		ListingsParsed,
		ListingsSkipped,
		ReconcileSeconds,
		PriceChanges,
		NotificationsSent,
		NotificationErrors,
		ChatBindings,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
