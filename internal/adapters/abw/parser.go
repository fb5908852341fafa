package abw

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tonykorol/tms-dproject/internal/domain"
)

// Parser превращает сырые элементы ленты в записи снапшота. Каждый вызов
// возвращает собственный результат или ошибку — общего накопителя нет,
// последовательность собирает вызывающий.
type Parser struct {
	dates *DateResolver
}

// NewParser создаёт парсер с заданным резолвером дат.
func NewParser(dates *DateResolver) *Parser {
	return &Parser{dates: dates}
}

type listItem struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Text        string      `json:"text"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Link        string      `json:"link"`
	Images      []string    `json:"images"`
	Price       struct {
		USD string `json:"usd"`
	} `json:"price"`
}

// Parse разбирает один элемент ленты. Возвращает ErrMalformedListing,
// если у элемента нет целочисленного идентификатора или заголовок
// не делится минимум на марку, модель и год, и ErrPriceParse, если цена
// не является целым числом. Остальные характеристики необязательны.
func (p *Parser) Parse(raw json.RawMessage) (domain.SnapshotItem, error) {
	var item listItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.SnapshotItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedListing, err)
	}
	id, err := item.ID.Int64()
	if err != nil || id <= 0 {
		return domain.SnapshotItem{}, fmt.Errorf("%w: идентификатор %q", domain.ErrMalformedListing, item.ID.String())
	}
	title, err := ParseTitle(item.Title)
	if err != nil {
		return domain.SnapshotItem{}, fmt.Errorf("объявление %d: %w", id, err)
	}
	price, err := ParsePrice(item.Price.USD)
	if err != nil {
		return domain.SnapshotItem{}, fmt.Errorf("объявление %d: %w", id, err)
	}
	return domain.SnapshotItem{
		ExternalID:  id,
		PublishedAt: p.dates.Resolve(item.Date),
		Link:        SiteURL + item.Link,
		Description: item.Text,
		Attributes:  ExtractAttributes(item.Description),
		Price:       price,
		Images:      item.Images,
		Brand:       title.Brand,
		Model:       title.Model,
		Generation:  title.Generation,
		Year:        title.Year,
		SiteName:    SiteName,
		SiteURL:     SiteURL,
	}, nil
}

// TitleParts — результат разбора заголовка объявления.
type TitleParts struct {
	Brand      string
	Model      string
	Generation string
	Year       int
}

// ParseTitle делит заголовок по пробелам: первый токен — марка, второй —
// модель, всё между вторым и последним — поколение (хвостовая пунктуация
// отбрасывается). Год берётся из первых четырёх символов последнего
// токена; неразборчивый год остаётся нулевым, а не бракует запись.
func ParseTitle(title string) (TitleParts, error) {
	tokens := strings.Fields(title)
	if len(tokens) < 3 {
		return TitleParts{}, fmt.Errorf("%w: заголовок %q", domain.ErrMalformedListing, title)
	}
	parts := TitleParts{Brand: tokens[0], Model: tokens[1]}
	generation := strings.Join(tokens[2:len(tokens)-1], " ")
	parts.Generation = strings.TrimRightFunc(generation, unicode.IsPunct)
	last := tokens[len(tokens)-1]
	if len(last) >= 4 {
		if year, err := strconv.Atoi(last[:4]); err == nil {
			parts.Year = year
		}
	}
	return parts, nil
}

var priceRe = regexp.MustCompile(`\d[\d\s\x{00A0}]*`)

// ParsePrice убирает валютный суффикс и разделители разрядов и разбирает
// цену как целое число.
func ParsePrice(s string) (int64, error) {
	match := priceRe.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", domain.ErrPriceParse, s)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, match)
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrPriceParse, s)
	}
	return value, nil
}

// Словари закрытых характеристик. Границы слов ASCII (\b) для кириллицы
// не работают, поэтому термины ограничены разделителями явно.
var (
	mileageRe      = regexp.MustCompile(`(\d{1,3}(?:[\s\x{00A0}]\d{3})+|\d+)[\s\x{00A0}]*км`)
	volumeRe       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)[\s\x{00A0}]*л(?:[\s\x{00A0}/,)]|$)`)
	hpRe           = regexp.MustCompile(`(\d+)[\s\x{00A0}]*л\.\s?с\.`)
	engineRe       = vocabRe("бензин", "дизель", "электро", "гибрид")
	transmissionRe = vocabRe("автомат", "механика", "робот", "вариатор")
	driveRe        = vocabRe("полный", "передний", "задний")
	bodyRe         = vocabRe("седан", "хэтчбек", "универсал", "купе", "кроссовер", "внедорожник", "минивэн", "лифтбек", "пикап", "фургон", "кабриолет")
)

func vocabRe(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[\s/(])(` + strings.Join(words, "|") + `)(?:[\s/),.]|$)`)
}

// ExtractAttributes выполняет независимый поиск каждой характеристики в
// свободном тексте. Ненайденная характеристика остаётся пустой строкой —
// запись целиком из-за этого не бракуется.
func ExtractAttributes(description string) domain.CarAttributes {
	return domain.CarAttributes{
		EngineType:   findGroup(engineRe, description),
		EngineHP:     findGroup(hpRe, description),
		EngineVolume: findGroup(volumeRe, description),
		Transmission: findGroup(transmissionRe, description),
		Drive:        findGroup(driveRe, description),
		Mileage:      findGroup(mileageRe, description),
		BodyType:     findGroup(bodyRe, description),
	}
}

func findGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
