package domain

import "errors"

var (
	// ErrValidation — корень всех ошибок некорректного ввода.
	// Такие ошибки возвращаются до обращения к ledger и каталогу.
	ErrValidation = errors.New("validation failed")

	// Ошибка неподдерживаемого ключа сортировки.
	ErrInvalidSortKey = validationError("unsupported sort key")
	// Ошибка отрицательного номера страницы.
	ErrInvalidPageIndex = validationError("page index must be non-negative")
	// Ошибка размера страницы вне допустимого диапазона.
	ErrInvalidPageSize = validationError("page size is out of range")
	// Ошибка некорректного topN (должен быть > 0).
	ErrInvalidTopN = validationError("top_n must be greater than zero")
	// Ошибка некорректного порога повторных покупок.
	ErrInvalidThreshold = validationError("repeat purchase threshold must be greater than zero")
	// Ошибка поискового запроса (длина, управляющие символы, кодировка).
	ErrMalformedKeyword = validationError("malformed keyword")
	// Ошибка метки категории.
	ErrMalformedCategory = validationError("malformed category")
	// Ошибка позиции заказа при записи в ledger.
	ErrInvalidOrderLine = validationError("invalid order line")
	// Ошибка карточки товара при загрузке каталога.
	ErrInvalidProduct = validationError("invalid product")

	// ErrProductNotFound возвращается хранилищем, когда товар не найден по ID.
	ErrProductNotFound = errors.New("product not found")
	// ErrCacheMiss сигнализирует об отсутствии записи в кэше ранжирования.
	ErrCacheMiss = errors.New("ranking cache miss")
	// ErrStaleRanking возвращает RankingCache.Set, если scope инвалидировали
	// после чтения поколения: ранжирование могло быть посчитано по старому ledger.
	ErrStaleRanking = errors.New("ranking invalidated while computing")
)

type wrappedValidation struct {
	msg string
}

func (e *wrappedValidation) Error() string { return e.msg }

func (e *wrappedValidation) Unwrap() error { return ErrValidation }

func validationError(msg string) error {
	return &wrappedValidation{msg: msg}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации ввода.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
