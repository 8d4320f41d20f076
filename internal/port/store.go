package port

import (
	"context"
	"time"

	"github.com/bblog/blogbot/internal/domain"
)

// BlogStore abstracts read access to the relational source of truth.
type BlogStore interface {
	// GetAllBlogs returns every published blog.
	GetAllBlogs(ctx context.Context) ([]domain.Blog, error)

	// GetBlogByID returns one blog or ErrBlogNotFound.
	GetBlogByID(ctx context.Context, id int64) (*domain.Blog, error)

	// GetBlogsModifiedAfter returns blogs created or updated after ts,
	// newest first.
	GetBlogsModifiedAfter(ctx context.Context, ts time.Time) ([]domain.Blog, error)

	// GetBlogCount returns the total number of blogs.
	GetBlogCount(ctx context.Context) (int, error)
}

// NotificationHandler receives the raw payload of one change event.
// Implementations must not panic past the handler boundary; errors are
// logged inside and never stop the listening loop.
type NotificationHandler func(ctx context.Context, payload string)

// Notifier delivers asynchronous change events from the relational
// store over a dedicated connection. Listen blocks until ctx is
// cancelled or the subscription cannot be established.
type Notifier interface {
	Listen(ctx context.Context, handler NotificationHandler) error
}
