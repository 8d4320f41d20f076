package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bblog/blogbot/internal/port"
	"github.com/lib/pq"
)

const (
	reconnectMinInterval = 10 * time.Second
	reconnectMaxInterval = time.Minute
	keepaliveInterval    = 90 * time.Second
)

// NotifyListener subscribes to a Postgres NOTIFY channel over a
// dedicated connection, separate from the query pool. pq.Listener keeps
// that connection permanently in listening mode and reconnects with
// backoff on its own.
type NotifyListener struct {
	dsn     string
	channel string
}

// NewNotifyListener creates a listener for the given channel.
func NewNotifyListener(dsn, channel string) *NotifyListener {
	return &NotifyListener{dsn: dsn, channel: channel}
}

// Listen blocks, invoking handler for every notification payload, until
// ctx is cancelled. Cancellation is a clean exit, not an error.
func (l *NotifyListener) Listen(ctx context.Context, handler port.NotificationHandler) error {
	pl := pq.NewListener(l.dsn, reconnectMinInterval, reconnectMaxInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Error("notification connection event", "event", ev, "error", err)
			}
		})
	defer pl.Close()

	if err := pl.Listen(l.channel); err != nil {
		return fmt.Errorf("listen on %q: %w", l.channel, err)
	}
	slog.Info("listening for blog notifications", "channel", l.channel)

	for {
		select {
		case <-ctx.Done():
			slog.Info("notification listener shutting down")
			return nil
		case n, ok := <-pl.Notify:
			if !ok {
				return nil
			}
			// A nil notification marks a reconnect; events may have
			// been missed while disconnected.
			if n == nil {
				slog.Warn("notification connection re-established, events may have been missed")
				continue
			}
			handler(ctx, n.Extra)
		case <-time.After(keepaliveInterval):
			// Keep the dedicated connection alive through idle periods.
			go func() {
				if err := pl.Ping(); err != nil {
					slog.Error("notification keepalive ping failed", "error", err)
				}
			}()
		}
	}
}
