package core

import "math"

// Page selects a window of a result set. A zero Size means "everything" (exports).
type Page struct {
	Number int
	Size   int
}

// AllRows is the Page used by exports: the whole filtered result set.
var AllRows = Page{}

// NewPage clamps number to [1, the last page whose offset fits in an int].
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size > 0 && number > maxPageNumber(size) {
		number = maxPageNumber(size)
	}
	return Page{Number: number, Size: size}
}

func maxPageNumber(size int) int { return math.MaxInt / size }

func (p Page) IsAll() bool { return p.Size <= 0 }

func (p Page) Limit() int { return p.Size }

func (p Page) Offset() int {
	if p.IsAll() || p.Number < 1 {
		return 0
	}
	if p.Number > maxPageNumber(p.Size) {
		return (maxPageNumber(p.Size) - 1) * p.Size
	}
	return (p.Number - 1) * p.Size
}

// Window returns the [start, end) bounds of the page within n items.
func (p Page) Window(n int) (int, int) {
	if p.IsAll() {
		return 0, n
	}
	start := p.Offset()
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := start + p.Size
	if end > n || end < start {
		end = n
	}
	return start, end
}

// Pagination is the metadata returned with every paginated listing.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
	PrevPage   *int `json:"prev_page,omitempty"`
	NextPage   *int `json:"next_page,omitempty"`
}

func NewPagination(p Page, total int) Pagination {
	if p.IsAll() {
		return Pagination{Page: 1, PerPage: total, Total: total, TotalPages: 1}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.Size)))
	}
	meta := Pagination{
		Page:       p.Number,
		PerPage:    p.Size,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    p.Number > 1,
		HasNext:    totalPages > 0 && p.Number < totalPages,
	}
	if meta.HasPrev {
		prev := p.Number - 1
		meta.PrevPage = &prev
	}
	if meta.HasNext {
		next := p.Number + 1
		meta.NextPage = &next
	}
	return meta
}
