package notify

import (
	"fmt"
	"strings"

	"github.com/tonykorol/tms-dproject/internal/domain"
)

// FormatPriceChange строит текст уведомления: площадка, автомобиль,
// год, новая цена и ссылка на объявление.
func FormatPriceChange(change domain.PriceChange) string {
	identity := strings.TrimSpace(fmt.Sprintf("%s %s %s",
		change.CarModel.Brand, change.CarModel.Model, change.CarModel.Generation))
	if change.Listing.Year > 0 {
		identity = fmt.Sprintf("%s %d", identity, change.Listing.Year)
	}
	var b strings.Builder
	b.WriteString("В объявлении изменилась цена!\n")
	fmt.Fprintf(&b, "На сайте %s\n", change.Site.Name)
	b.WriteString(identity + "\n")
	fmt.Fprintf(&b, "Новая цена: %d $\n", change.Record.Price)
	b.WriteString(change.Listing.Link)
	return b.String()
}
