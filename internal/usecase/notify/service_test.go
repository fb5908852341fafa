package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tonykorol/tms-dproject/internal/domain"
)

type stubFavorites struct {
	users []domain.User
	err   error
}

func (s *stubFavorites) ListFavoriteUsers(ctx context.Context, listingID int64) ([]domain.User, error) {
	return s.users, s.err
}

type stubSender struct {
	mu     sync.Mutex
	sent   []int64
	failOn map[int64]bool
}

func (s *stubSender) SendText(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[chatID] {
		return fmt.Errorf("чат %d недоступен", chatID)
	}
	s.sent = append(s.sent, chatID)
	return nil
}

func chatID(id int64) *int64 {
	return &id
}

func testChange() domain.PriceChange {
	return domain.PriceChange{
		Listing: domain.Listing{
			ID:         1,
			ExternalID: 123456,
			Link:       "https://abw.by/cars/camry/123456",
			Year:       2020,
		},
		Site:     domain.Site{ID: 1, Name: "abw.by", URL: "https://abw.by"},
		CarModel: domain.CarModel{ID: 1, Brand: "Toyota", Model: "Camry", Generation: "XV70"},
		Record:   domain.PriceRecord{ID: 2, ListingID: 1, Price: 9500},
	}
}

func TestNotifySendsToBoundUsersOnly(t *testing.T) {
	favorites := &stubFavorites{users: []domain.User{
		{ID: 1, Username: "alice", TGChatID: chatID(100)},
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol", TGChatID: chatID(300)},
	}}
	sender := &stubSender{}
	svc := NewService(favorites, sender, zerolog.Nop())

	if err := svc.NotifyPriceChange(context.Background(), testChange()); err != nil {
		t.Fatalf("рассылка: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("отправки: получили %d, ожидали 2", len(sender.sent))
	}
	got := map[int64]bool{}
	for _, id := range sender.sent {
		got[id] = true
	}
	if !got[100] || !got[300] {
		t.Fatalf("получатели: %v", sender.sent)
	}
}

func TestNotifyFailureDoesNotBlockOthers(t *testing.T) {
	favorites := &stubFavorites{users: []domain.User{
		{ID: 1, Username: "alice", TGChatID: chatID(100)},
		{ID: 2, Username: "bob", TGChatID: chatID(200)},
	}}
	sender := &stubSender{failOn: map[int64]bool{100: true}}
	svc := NewService(favorites, sender, zerolog.Nop())

	if err := svc.NotifyPriceChange(context.Background(), testChange()); err != nil {
		t.Fatalf("сбой одного получателя не должен быть ошибкой рассылки: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != 200 {
		t.Fatalf("отправки: %v", sender.sent)
	}
}

func TestNotifyRepoError(t *testing.T) {
	favorites := &stubFavorites{err: fmt.Errorf("БД недоступна")}
	sender := &stubSender{}
	svc := NewService(favorites, sender, zerolog.Nop())

	if err := svc.NotifyPriceChange(context.Background(), testChange()); err == nil {
		t.Fatalf("ожидали ошибку чтения получателей")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("сообщения не должны уходить: %v", sender.sent)
	}
}

func TestFormatPriceChange(t *testing.T) {
	got := FormatPriceChange(testChange())
	want := "В объявлении изменилась цена!\n" +
		"На сайте abw.by\n" +
		"Toyota Camry XV70 2020\n" +
		"Новая цена: 9500 $\n" +
		"https://abw.by/cars/camry/123456"
	if got != want {
		t.Fatalf("текст уведомления:\n%s\nожидали:\n%s", got, want)
	}
}

func TestFormatPriceChangeWithoutYear(t *testing.T) {
	change := testChange()
	change.Listing.Year = 0
	got := FormatPriceChange(change)
	if strings.Contains(got, "2020") {
		t.Fatalf("нулевой год попал в текст:\n%s", got)
	}
	if !strings.Contains(got, "Toyota Camry XV70\n") {
		t.Fatalf("автомобиль без года:\n%s", got)
	}
}
