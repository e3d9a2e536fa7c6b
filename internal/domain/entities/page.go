package entities

// Page is one slice of an ordered result set
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// TotalPagesFor returns ceil(total/pageSize), or 0 for an empty set
func TotalPagesFor(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageBounds returns the offset of the first item of page and whether the page
// lies inside the result set.
func PageBounds(page, pageSize, total int) (offset int, ok bool) {
	if page < 1 || pageSize <= 0 {
		return 0, false
	}
	if page > TotalPagesFor(total, pageSize) {
		return 0, false
	}
	return (page - 1) * pageSize, true
}
