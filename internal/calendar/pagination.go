package calendar

const defaultPageSize = 20

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T // элементы на текущей странице
	Page     int // номер страницы (с 1)
	PageSize int // количество элементов на странице
	HasNext  bool
	HasPrev  bool
	Total    int // общее количество элементов
}

// Offset переводит page/pageSize в limit/offset для запроса к хранилищу.
// При некорректных значениях используются дефолты.
func Offset(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

// NewPage оборачивает уже ограниченную хранилищем выборку; total — полное число строк.
func NewPage[T any](items []T, page, pageSize int, total int64) Page[T] {
	limit, offset := Offset(page, pageSize)
	if page <= 0 {
		page = 1
	}
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: limit,
		HasNext:  int64(offset+len(items)) < total,
		HasPrev:  page > 1,
		Total:    int(total),
	}
}
