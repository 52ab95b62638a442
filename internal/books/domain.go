package books

import (
	"time"

	"github.com/librarium/librarium/internal/shared"
)

// Book is a catalogue entry.
type Book struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn,omitempty"`
	PublishedYear *int      `json:"publishedYear,omitempty"`
	CreatedBy     *int64    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Input carries the writable fields of a book.
type Input struct {
	Title         string `json:"title" validate:"required,max=255"`
	Author        string `json:"author" validate:"required,max=255"`
	ISBN          string `json:"isbn" validate:"omitempty,isbn"`
	PublishedYear *int   `json:"publishedYear" validate:"omitempty,gte=1000,lte=9999"`
}

// ListFilters narrows a listing.
type ListFilters struct {
	Search  string
	Page    int
	PerPage int
}

// Page is one page of a listing.
type Page struct {
	Items      []Book            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}
