package handler

import (
	"log/slog"

	"github.com/bblog/blogbot/internal/port"
	"github.com/bblog/blogbot/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SyncHandler serves the force-reindex and health endpoints.
type SyncHandler struct {
	sync  *service.SyncService
	store port.BlogStore
	index port.VectorIndex
	llm   port.LLMProvider
}

// NewSyncHandler creates a sync/health handler.
func NewSyncHandler(sync *service.SyncService, store port.BlogStore, index port.VectorIndex, llm port.LLMProvider) *SyncHandler {
	return &SyncHandler{sync: sync, store: store, index: index, llm: llm}
}

// Register sets up sync routes.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/reindex", h.Reindex)
	router.Get("/health", h.Health)
}

// Reindex forces a full rebuild of the vector index from the current
// blog snapshot.
func (h *SyncHandler) Reindex(c fiber.Ctx) error {
	blogs, err := h.store.GetAllBlogs(c.Context())
	if err != nil {
		slog.Error("load blogs for reindex failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load blogs"})
	}

	if err := h.sync.RebuildAll(c.Context(), blogs, nil); err != nil {
		slog.Error("reindex failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reindex failed"})
	}

	return c.JSON(fiber.Map{"indexed": len(blogs)})
}

// Health reports service liveness and collaborator status.
func (h *SyncHandler) Health(c fiber.Ctx) error {
	services := fiber.Map{"groq": h.llm.MaskedKey()}

	if count, err := h.index.Count(c.Context()); err != nil {
		services["pinecone"] = "error: " + err.Error()
	} else {
		services["pinecone"] = fiber.Map{"vectors": count}
	}

	if count, err := h.store.GetBlogCount(c.Context()); err != nil {
		services["database"] = "error: " + err.Error()
	} else {
		services["database"] = fiber.Map{"blogs": count}
	}

	return c.JSON(fiber.Map{"status": "ok", "services": services})
}
