package abw

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

const (
	// SiteName и SiteURL идентифицируют площадку в хранилище.
	SiteName = "abw.by"
	SiteURL  = "https://abw.by"

	apiURL = "https://b.abw.by/api/v2/adverts/list/cars"
)

// userAgents — пул заголовков, из которого каждый запрос берёт случайный
// элемент, чтобы не упереться в антискрейпинговую защиту площадки.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; WOW64; rv:45.0) Gecko/20100101 Firefox/45.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.105 YaBrowser/21.3.3.230 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 Safari/537.36",
	"Mozilla/5.0 (Windows NT 5.1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.81 Safari/537.36 Maxthon/5.3.8.2000",
	"Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 YaBrowser/20.12.2.105 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.60 YaBrowser/20.12.0.963 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/85.0.4183.83 YaBrowser/20.9.0.933 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.41 YaBrowser/21.2.0.1097 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:76.0) Gecko/20100101 Firefox/76.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:82.0) Gecko/20100101 Firefox/82.0",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/85.0.4183.102 YaBrowser/20.9.1.112 Yowser/2.5 Safari/537.36",
	"Mozilla/5.0 (Windows NT 5.1; rv:52.0) Gecko/20100101 Firefox/52.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.192 Safari/537.36 OPR/74.0.3911.218",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.82 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.152 YaBrowser/21.2.2.101 Yowser/2.5 Safari/537.36",
}

// Client выгружает страницы ленты объявлений abw.by.
type Client struct {
	http  *http.Client
	log   zerolog.Logger
	base  string
	delay time.Duration
}

// NewClient создаёт клиент с паузой delay между запросами страниц.
func NewClient(logger zerolog.Logger, delay time.Duration) *Client {
	return &Client{
		http:  &http.Client{Timeout: 15 * time.Second},
		log:   logger,
		base:  apiURL,
		delay: delay,
	}
}

type pageResponse struct {
	Pagination struct {
		Pages int `json:"pages"`
	} `json:"pagination"`
	List []json.RawMessage `json:"list"`
}

// Pages возвращает количество страниц из метаданных пагинации источника.
func (c *Client) Pages(ctx context.Context) (int, error) {
	body, err := c.get(ctx, 0)
	if err != nil {
		return 0, err
	}
	return body.Pagination.Pages, nil
}

// FetchPages выгружает до maxPages страниц подряд (0 — все), выдерживая
// паузу между запросами. Неудачная страница пропускается без повтора:
// диагностика уходит в лог, проход продолжается со следующей.
func (c *Client) FetchPages(ctx context.Context, maxPages int) ([]json.RawMessage, error) {
	pages, err := c.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("abw: метаданные пагинации: %w", err)
	}
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}
	var items []json.RawMessage
	for page := 1; page <= pages; page++ {
		body, err := c.get(ctx, page)
		if err != nil {
			metrics.PageErrors.Inc()
			c.log.Warn().Err(err).Int("page", page).Msg("abw: страница пропущена")
		} else {
			metrics.PagesFetched.Inc()
			items = append(items, body.List...)
		}
		if page < pages {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, page int) (*pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return nil, err
	}
	operation := "list_meta"
	if page > 0 {
		q := req.URL.Query()
		q.Set("page", strconv.Itoa(page))
		req.URL.RawQuery = q.Encode()
		operation = "list_page"
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("abw", operation, strconv.Itoa(page), start, err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("abw: статус %d", resp.StatusCode)
	}
	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("abw: декодирование ответа: %w", err)
	}
	return &body, nil
}
