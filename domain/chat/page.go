package chat

import "interest-chat/errors"

const DefaultPageSize = 50

// Page is a 1-based window over a newest-first log.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) (Page, error) {
	if number < 1 || size < 1 {
		return Page{}, errors.ErrInvalidPagination
	}
	return Page{Number: number, Size: size}, nil
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalMessages int  `json:"totalMessages"`
	HasNext       bool `json:"hasNext"`
	HasPrev       bool `json:"hasPrev"`
}

func (p Page) Paginate(total int) Pagination {
	totalPages := (total + p.Size - 1) / p.Size
	return Pagination{
		CurrentPage:   p.Number,
		TotalPages:    totalPages,
		TotalMessages: total,
		HasNext:       p.Number < totalPages,
		HasPrev:       p.Number > 1,
	}
}
