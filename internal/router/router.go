package router

import (
	"net/http"

	"github.com/senyabanana/licitacao-service/internal/handlers"
)

// Handlers - набор обработчиков, из которых собираются маршруты.
type Handlers struct {
	Ping      http.Handler
	Tenders   *handlers.TenderHandler
	Lots      *handlers.LotHandler
	Bids      *handlers.BidHandler
	Resources *handlers.ResourceHandler
}

// InitRoutes регистрирует маршруты API. Все маршруты, кроме /api/ping, требуют токен.
func InitRoutes(h Handlers, authenticate func(http.Handler) http.Handler) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/tenders/{tenderId}", h.Tenders.GetTender)
	api.HandleFunc("GET /api/tenders/{tenderId}/messages", h.Tenders.GetMessages)
	api.HandleFunc("POST /api/tenders/{tenderId}/messages", h.Tenders.PostMessage)
	api.HandleFunc("POST /api/tenders/{tenderId}/publish", h.Tenders.PublishTender)
	api.HandleFunc("POST /api/tenders/{tenderId}/schedule", h.Tenders.ScheduleOpening)
	api.HandleFunc("POST /api/tenders/{tenderId}/open-proposals", h.Tenders.OpenProposals)
	api.HandleFunc("POST /api/tenders/{tenderId}/revoke", h.Tenders.RevokeTender)
	api.HandleFunc("POST /api/tenders/{tenderId}/cancel", h.Tenders.CancelTender)

	api.HandleFunc("POST /api/lots/{lotId}/dispute/start", h.Lots.StartDispute)
	api.HandleFunc("POST /api/lots/{lotId}/dispute/end", h.Lots.EndDispute)
	api.HandleFunc("POST /api/lots/{lotId}/dispute/pause", h.Lots.PauseDispute)
	api.HandleFunc("POST /api/lots/{lotId}/dispute/resume", h.Lots.ResumeDispute)
	api.HandleFunc("POST /api/lots/{lotId}/negotiation", h.Lots.StartNegotiation)
	api.HandleFunc("POST /api/lots/{lotId}/winner", h.Lots.DeclareWinner)
	api.HandleFunc("POST /api/lots/{lotId}/disqualify", h.Lots.Disqualify)
	api.HandleFunc("POST /api/lots/{lotId}/resource-phase", h.Lots.OpenResourcePhase)
	api.HandleFunc("POST /api/lots/{lotId}/adjudicate", h.Lots.Adjudicate)
	api.HandleFunc("POST /api/lots/{lotId}/homologate", h.Lots.Homologate)
	api.HandleFunc("POST /api/lots/{lotId}/revoke", h.Lots.Revoke)
	api.HandleFunc("POST /api/lots/{lotId}/cancel", h.Lots.Cancel)
	api.HandleFunc("POST /api/lots/{lotId}/diligence", h.Lots.ReturnForDiligence)

	api.HandleFunc("GET /api/lots/{lotId}/bids/best", h.Bids.BestBid)
	api.HandleFunc("POST /api/lots/{lotId}/bids", h.Bids.SubmitBid)
	api.HandleFunc("DELETE /api/lots/{lotId}/bids/pending", h.Bids.CancelBid)

	api.HandleFunc("POST /api/lots/{lotId}/resource-phase/close", h.Resources.CloseManifestation)
	api.HandleFunc("POST /api/lots/{lotId}/resources/manifest", h.Resources.AddManifestation)
	api.HandleFunc("POST /api/lots/{lotId}/resources", h.Resources.SubmitResource)
	api.HandleFunc("POST /api/resources/{resourceId}/counter-arguments", h.Resources.SubmitCounterArgument)
	api.HandleFunc("POST /api/resources/{resourceId}/judgment", h.Resources.JudgeResource)

	mux := http.NewServeMux()
	mux.Handle("GET /api/ping", h.Ping)
	mux.Handle("/api/", authenticate(api))
	return mux
}
