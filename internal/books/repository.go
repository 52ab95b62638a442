package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarium/librarium/internal/platform/db"
	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// Repository defines persistence operations for books.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Book, int, error)
	Get(ctx context.Context, id int64) (Book, error)
	Create(ctx context.Context, in Input, createdBy *int64) (Book, error)
	Update(ctx context.Context, id int64, in Input) (Book, error)
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const bookColumns = `id, title, author, COALESCE(isbn, ''), published_year, created_by, created_at, updated_at`

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.PublishedYear, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *pgRepository) List(ctx context.Context, filters ListFilters) ([]Book, int, error) {
	where := ""
	args := []any{}
	if search := strings.TrimSpace(filters.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = ` WHERE title ILIKE $1 OR author ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("books: count: %w", err)
	}

	offset := (filters.Page - 1) * filters.PerPage
	args = append(args, filters.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM books%s ORDER BY title, id LIMIT $%d OFFSET $%d`, bookColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("books: list: %w", err)
	}
	defer rows.Close()
	items := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, shared.ErrNotFound
		}
		return Book{}, fmt.Errorf("books: get: %w", err)
	}
	return b, nil
}

func (r *pgRepository) Create(ctx context.Context, in Input, createdBy *int64) (Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `INSERT INTO books (title, author, isbn, published_year, created_by)
VALUES ($1, $2, NULLIF($3, ''), $4, $5) RETURNING `+bookColumns,
		in.Title, in.Author, in.ISBN, in.PublishedYear, createdBy))
	if err != nil {
		return Book{}, writeError("create", in, err)
	}
	return b, nil
}

func (r *pgRepository) Update(ctx context.Context, id int64, in Input) (Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `UPDATE books
SET title = $2, author = $3, isbn = NULLIF($4, ''), published_year = $5, updated_at = NOW()
WHERE id = $1 RETURNING `+bookColumns,
		id, in.Title, in.Author, in.ISBN, in.PublishedYear))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, shared.ErrNotFound
		}
		return Book{}, writeError("update", in, err)
	}
	return b, nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("books: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func writeError(op string, in Input, err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("isbn %q: %w", in.ISBN, httpx.ErrDuplicate)
	}
	return fmt.Errorf("books: %s: %w", op, err)
}
