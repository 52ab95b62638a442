package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// Service implements catalogue operations.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// List returns one page of books matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) (Page, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PerPage <= 0 {
		filters.PerPage = 20
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Book{}
	}
	return Page{Items: items, Pagination: shared.NewPagination(filters.Page, filters.PerPage, total)}, nil
}

// Get fetches a book by id.
func (s *Service) Get(ctx context.Context, id int64) (Book, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a book on behalf of createdBy.
func (s *Service) Create(ctx context.Context, in Input, createdBy *int64) (Book, error) {
	in, err := s.clean(in)
	if err != nil {
		return Book{}, err
	}
	return s.repo.Create(ctx, in, createdBy)
}

// Update replaces the writable fields of a book.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Book, error) {
	in, err := s.clean(in)
	if err != nil {
		return Book{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a book.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) clean(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.ReplaceAll(strings.TrimSpace(in.ISBN), "-", "")
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Input{}, fmt.Errorf("%s failed %s validation: %w", verrs[0].Field(), verrs[0].Tag(), httpx.ErrValidation)
		}
		return Input{}, fmt.Errorf("%v: %w", err, httpx.ErrValidation)
	}
	return in, nil
}
