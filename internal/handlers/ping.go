package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/licitacao-service/internal/utils"
)

// PingHandler обрабатывает GET запрос к /api/ping
type PingHandler struct {
	Ping    func(ctx context.Context) error
	Logger  *log.Logger
	Timeout time.Duration
}

// NewPingHandler создаёт PingHandler поверх проверки хранилища.
func NewPingHandler(ping func(ctx context.Context) error, logger *log.Logger, timeout time.Duration) *PingHandler {
	return &PingHandler{Ping: ping, Logger: logger, Timeout: timeout}
}

func (h *PingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Ping(ctx); err != nil {
		h.Logger.Printf("ping: %v", err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "ok"); err != nil {
		h.Logger.Println(err)
	}
}
