package domain

import "errors"

// Ошибки уровня одного элемента снапшота: элемент пропускается с записью
// в лог, проход продолжается. Ошибка транзакции сверки, напротив,
// откатывает весь проход.
var (
	// ErrMalformedListing — у объявления нет целочисленного идентификатора
	// или заголовок не делится минимум на марку, модель и год.
	ErrMalformedListing = errors.New("объявление не удалось разобрать")

	// ErrPriceParse — цена не является целым числом. Объявление без цены
	// не сохраняется.
	ErrPriceParse = errors.New("не удалось разобрать цену")
)
