package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/port"
)

// PostgresStore provides read access to the blog tables. The blog
// platform owns the schema; this service never writes to it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetAllBlogs returns every blog in the source table.
func (s *PostgresStore) GetAllBlogs(ctx context.Context) ([]domain.Blog, error) {
	query := `SELECT id, title, COALESCE(description, ''), contents, created_at
	          FROM blogschema.blogs`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	return scanBlogs(rows)
}

// GetBlogByID returns one blog, or port.ErrBlogNotFound.
func (s *PostgresStore) GetBlogByID(ctx context.Context, id int64) (*domain.Blog, error) {
	query := `SELECT id, title, COALESCE(description, ''), contents, created_at
	          FROM blogschema.blogs WHERE id = $1`

	var b domain.Blog
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Description, &b.Contents, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrBlogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blog %d: %w", id, err)
	}
	return &b, nil
}

// GetBlogsModifiedAfter returns blogs created or updated after ts, newest first.
func (s *PostgresStore) GetBlogsModifiedAfter(ctx context.Context, ts time.Time) ([]domain.Blog, error) {
	query := `SELECT id, title, COALESCE(description, ''), contents, created_at
	          FROM blogschema.blogs
	          WHERE created_at > $1 OR updated_at > $1
	          ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("list blogs modified after %s: %w", ts, err)
	}
	defer rows.Close()

	return scanBlogs(rows)
}

// GetBlogCount returns the total number of blogs.
func (s *PostgresStore) GetBlogCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogschema.blogs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count blogs: %w", err)
	}
	return count, nil
}

func scanBlogs(rows *sql.Rows) ([]domain.Blog, error) {
	var blogs []domain.Blog
	for rows.Next() {
		var b domain.Blog
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Contents, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blogs: %w", err)
	}
	return blogs, nil
}
