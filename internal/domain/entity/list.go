package entity

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// ListQuery carries the pagination and sorting options shared by every list endpoint.
type ListQuery struct {
	Page   int
	Limit  int
	Sort   string
	Order  string // asc, desc
	Search string
}

// Normalize clamps paging values and resolves sort against the allowed fields.
// The first allowed field is the default.
func (q ListQuery) Normalize(allowedSort ...string) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	if len(allowedSort) > 0 {
		ok := false
		for _, f := range allowedSort {
			if f == q.Sort {
				ok = true
				break
			}
		}
		if !ok {
			q.Sort = allowedSort[0]
		}
	}
	return q
}

func (q ListQuery) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

// Direction returns 1 for ascending and -1 for descending.
func (q ListQuery) Direction() int {
	if q.Order == "asc" {
		return 1
	}
	return -1
}

// Page is a page of results plus the total count matching the filter.
type Page[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"totalCount"`
}
