package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bblog/blogbot/internal/port"
)

// ChangeListener reacts to insert notifications from the blog table by
// indexing the referenced blog. It runs for the lifetime of the process
// and survives every per-event failure.
type ChangeListener struct {
	notifier port.Notifier
	store    port.BlogStore
	sync     *SyncService
}

// NewChangeListener creates a listener wired to the sync engine.
func NewChangeListener(notifier port.Notifier, store port.BlogStore, sync *SyncService) *ChangeListener {
	return &ChangeListener{notifier: notifier, store: store, sync: sync}
}

// Run blocks consuming notifications until ctx is cancelled.
func (l *ChangeListener) Run(ctx context.Context) error {
	return l.notifier.Listen(ctx, l.Handle)
}

// Handle processes one notification payload. Every failure mode is
// logged and dropped so the listening loop keeps going.
func (l *ChangeListener) Handle(ctx context.Context, payload string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling blog notification", "payload", payload, "panic", r)
		}
	}()

	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		slog.Warn("malformed notification payload, dropping", "payload", payload)
		return
	}

	blog, err := l.store.GetBlogByID(ctx, id)
	if errors.Is(err, port.ErrBlogNotFound) {
		// Deleted between notification and fetch; soft skip.
		slog.Warn("notified blog not found, dropping", "id", id)
		return
	}
	if err != nil {
		slog.Error("fetch notified blog failed", "id", id, "error", err)
		return
	}

	if err := l.sync.SyncOne(ctx, *blog); err != nil {
		slog.Error("index notified blog failed", "id", id, "error", err)
	}
}
