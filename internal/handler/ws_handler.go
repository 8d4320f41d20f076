package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/service"
	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
)

// WSHandler serves the duplex chat channel: free-text messages in,
// tagged {type, content} events out.
type WSHandler struct {
	chat     *service.ChatService
	upgrader websocket.FastHTTPUpgrader
}

// NewWSHandler creates a websocket chat handler.
func NewWSHandler(chat *service.ChatService) *WSHandler {
	return &WSHandler{
		chat: chat,
		upgrader: websocket.FastHTTPUpgrader{
			// CORS policy lives in the HTTP middleware; the browser
			// frontend connects from another origin.
			CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
		},
	}
}

// Register sets up the websocket route.
func (h *WSHandler) Register(router fiber.Router) {
	router.Get("/ws/chat", h.Chat)
}

// Chat upgrades the connection and answers each inbound message with a
// typing/token/delimiter event sequence.
func (h *WSHandler) Chat(c fiber.Ctx) error {
	return h.upgrader.Upgrade(c.RequestCtx(), func(conn *websocket.Conn) {
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			text := strings.TrimSpace(string(msg))
			if text == "" {
				continue
			}

			if !h.respond(conn, text) {
				return
			}
		}
	})
}

// respond streams one answer over the connection. Returns false when
// the client is gone and the read loop should stop.
func (h *WSHandler) respond(conn *websocket.Conn, text string) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(events)
		h.chat.AnswerStream(ctx, text, events)
	}()

	alive := true
	for ev := range events {
		if !alive {
			continue // drain so the producer can finish
		}
		if err := conn.WriteJSON(ev); err != nil {
			slog.Warn("websocket write failed, dropping client", "error", err)
			alive = false
			cancel()
		}
	}
	return alive
}
