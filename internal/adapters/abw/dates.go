package abw

import (
	"strconv"
	"strings"
	"time"
)

// DateResolver разбирает даты публикации источника: строгий формат
// «день месяц год» с русскими названиями месяцев, относительное «вчера»
// и всё остальное как «сегодня». Словарь отделён от разбора объявлений,
// чтобы его можно было заменить для другой площадки, не трогая сверку.
type DateResolver struct {
	months    map[string]time.Month
	yesterday string
	now       func() time.Time
}

// NewRussianDates создаёт резолвер со словарём abw.by.
// now == nil означает time.Now.
func NewRussianDates(now func() time.Time) *DateResolver {
	if now == nil {
		now = time.Now
	}
	return &DateResolver{
		months: map[string]time.Month{
			"января":   time.January,
			"февраля":  time.February,
			"марта":    time.March,
			"апреля":   time.April,
			"мая":      time.May,
			"июня":     time.June,
			"июля":     time.July,
			"августа":  time.August,
			"сентября": time.September,
			"октября":  time.October,
			"ноября":   time.November,
			"декабря":  time.December,
		},
		yesterday: "вчера",
		now:       now,
	}
}

// Resolve возвращает дату публикации с точностью до дня. Строка,
// не подошедшая под строгий формат, трактуется как «сегодня», ведущее
// «вчера» — как вчерашняя дата. Переход «вчера» через границу месяца
// учитывается: день, месяц и год берутся из пересчитанной даты.
func (r *DateResolver) Resolve(s string) time.Time {
	if date, ok := r.parseStrict(s); ok {
		return date
	}
	day := r.now()
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) > 0 && fields[0] == r.yesterday {
		day = day.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *DateResolver) parseStrict(s string) (time.Time, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 3 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(fields[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := r.months[strings.ToLower(fields[1])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
