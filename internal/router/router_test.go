package router

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/licitacao-service/internal/auth"
	"github.com/senyabanana/licitacao-service/internal/handlers"
	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/policy"
	"github.com/senyabanana/licitacao-service/internal/repository"
	"github.com/senyabanana/licitacao-service/internal/services"
)

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
	tokens *auth.Tokens
	svc    *services.Services
	store  repository.Store
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore().Store()
	seed := repository.Seed{Tenders: []repository.SeedTender{{
		ID: "t-1", Number: "90001/2026", Title: "Material de escritório", Status: models.TenderPublished,
		Lots: []repository.SeedLot{{
			ID: "lot-001", Number: "001", EstimatedValue: 3000,
			Suppliers: []repository.SeedSupplier{
				{ID: "s1", AccountID: "acc-s1", DisplayName: "Fornecedor s1"},
				{ID: "s2", AccountID: "acc-s2", DisplayName: "Fornecedor s2"},
			},
		}},
	}}}
	if _, err := seed.Apply(ctx, store, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard, "", 0)
	svc := services.NewServices(store, nil, auth.ClaimsChecker{}, policy.Default(), logger)
	timeout := 5 * time.Second

	routes := InitRoutes(Handlers{
		Ping:      handlers.NewPingHandler(store.Ping, logger, timeout),
		Tenders:   handlers.NewTenderHandler(svc.Workflow, logger, timeout),
		Lots:      handlers.NewLotHandler(svc.Workflow, logger, timeout),
		Bids:      handlers.NewBidHandler(svc.Dispute, logger, timeout),
		Resources: handlers.NewResourceHandler(svc.Resources, logger, timeout),
	}, handlers.AuthMiddleware(tokens, logger))

	server := httptest.NewServer(routes)
	t.Cleanup(server.Close)
	return &apiFixture{t: t, server: server, tokens: tokens, svc: svc, store: store}
}

func (a *apiFixture) token(actor models.Actor) string {
	a.t.Helper()
	token, err := a.tokens.Issue(actor, time.Now())
	if err != nil {
		a.t.Fatalf("Issue: %v", err)
	}
	return token
}

// do выполняет запрос и декодирует JSON ответ в out, если он задан.
func (a *apiFixture) do(method, path, token, body string, out interface{}) int {
	a.t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	if err != nil {
		a.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

var (
	pregoeiro = models.Actor{ID: "pregoeiro", Name: "Pregoeiro", Assignments: map[string][]models.Role{"t-1": {models.RoleAuctioneer}}}
	supplier1 = models.Actor{ID: "acc-s1", Name: "Fornecedor s1", Roles: []models.Role{models.RoleSupplier}}
	cidadao   = models.Actor{ID: "cidadao", Roles: []models.Role{models.RoleCitizen}}
)

func TestPingIsPublic(t *testing.T) {
	a := newAPI(t)
	resp, err := http.Get(a.server.URL + "/api/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("ping = %d %q", resp.StatusCode, body)
	}
}

func TestTokenRequired(t *testing.T) {
	a := newAPI(t)
	if code := a.do(http.MethodGet, "/api/tenders/t-1", "", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d, want 401", code)
	}
	if code := a.do(http.MethodGet, "/api/tenders/t-1", "garbage", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d, want 401", code)
	}
}

func TestDisputeOverHTTP(t *testing.T) {
	a := newAPI(t)
	official := a.token(pregoeiro)
	s1 := a.token(supplier1)

	var errResp models.ErrorResponse
	if code := a.do(http.MethodPost, "/api/tenders/t-1/open-proposals", s1, "", &errResp); code != http.StatusForbidden {
		t.Fatalf("open-proposals as supplier: %d, want 403", code)
	}
	if code := a.do(http.MethodPost, "/api/tenders/t-1/open-proposals", official, "", nil); code != http.StatusOK {
		t.Fatalf("open-proposals: %d", code)
	}
	var lot models.Lot
	if code := a.do(http.MethodPost, "/api/lots/lot-001/dispute/start", official, "", &lot); code != http.StatusOK || lot.Status != models.LotOpen {
		t.Fatalf("dispute/start: %d, lot %s", code, lot.Status)
	}

	errResp = models.ErrorResponse{}
	if code := a.do(http.MethodPost, "/api/lots/lot-001/bids", s1, `{"supplierId":"s1","value":"abc"}`, &errResp); code != http.StatusUnprocessableEntity || errResp.Code != "invalid_bid_value" {
		t.Fatalf("invalid bid: %d %+v", code, errResp)
	}
	if code := a.do(http.MethodPost, "/api/lots/lot-001/bids", s1, `{"value":"2890"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("bid without supplier: %d, want 400", code)
	}

	var bid models.Bid
	if code := a.do(http.MethodPost, "/api/lots/lot-001/bids", s1, `{"supplierId":"s1","value":"2.890,00"}`, &bid); code != http.StatusAccepted {
		t.Fatalf("bid: %d", code)
	}
	if bid.Status != models.BidPending || bid.Value != 2890 {
		t.Fatalf("bid = %+v", bid)
	}
	if err := a.svc.Dispute.Effectuate(context.Background(), bid.ID); err != nil {
		t.Fatalf("Effectuate: %v", err)
	}

	var quote models.BidQuote
	if code := a.do(http.MethodGet, "/api/lots/lot-001/bids/best", a.token(cidadao), "", &quote); code != http.StatusOK {
		t.Fatalf("best: %d", code)
	}
	if quote.Best == nil || quote.Best.Value != 2890 || quote.Suggested == nil || *quote.Suggested != 2889.99 {
		t.Fatalf("quote = %+v", quote)
	}

	var canceled map[string]bool
	if code := a.do(http.MethodDelete, "/api/lots/lot-001/bids/pending?supplierId=s1", s1, "", &canceled); code != http.StatusOK || canceled["canceled"] {
		t.Fatalf("cancel after settlement: %d %v", code, canceled)
	}

	if code := a.do(http.MethodPost, "/api/lots/lot-001/dispute/end", official, "", nil); code != http.StatusOK {
		t.Fatalf("dispute/end: %d", code)
	}
	errResp = models.ErrorResponse{}
	if code := a.do(http.MethodPost, "/api/lots/lot-001/winner", official, `{"supplierId":"s1"}`, &errResp); code != http.StatusUnprocessableEntity || errResp.Code != "missing_justification" {
		t.Fatalf("winner without justification: %d %+v", code, errResp)
	}
	if code := a.do(http.MethodPost, "/api/lots/lot-001/winner", official, `{"supplierId":"s1","justification":"melhor proposta"}`, &lot); code != http.StatusOK || lot.WinnerID != "s1" {
		t.Fatalf("winner: %d %+v", code, lot)
	}
	errResp = models.ErrorResponse{}
	if code := a.do(http.MethodPost, "/api/lots/lot-001/dispute/start", official, "", &errResp); code != http.StatusConflict || errResp.Code != "invalid_transition" {
		t.Fatalf("restart after winner: %d %+v", code, errResp)
	}

	var agg models.Aggregate
	if code := a.do(http.MethodGet, "/api/tenders/t-1", a.token(cidadao), "", &agg); code != http.StatusOK {
		t.Fatalf("snapshot: %d", code)
	}
	if agg.Tender.Status != models.TenderWinnerDeclaration || len(agg.Bids) != 1 || len(agg.Messages) == 0 {
		t.Fatalf("snapshot = tender %s, %d bid(s), %d message(s)", agg.Tender.Status, len(agg.Bids), len(agg.Messages))
	}
}

func TestMessagesOverHTTP(t *testing.T) {
	a := newAPI(t)
	official := a.token(pregoeiro)

	var msg models.SystemMessage
	if code := a.do(http.MethodPost, "/api/tenders/t-1/messages", official, `{"content":"Nota interna.","private":true}`, &msg); code != http.StatusCreated {
		t.Fatalf("post message: %d", code)
	}
	if code := a.do(http.MethodPost, "/api/tenders/t-1/messages", official, `{"content":"Bom dia."}`, nil); code != http.StatusCreated {
		t.Fatalf("post message: %d", code)
	}

	var public []models.SystemMessage
	if code := a.do(http.MethodGet, "/api/tenders/t-1/messages", a.token(cidadao), "", &public); code != http.StatusOK || len(public) != 1 {
		t.Fatalf("citizen messages: %d, %d message(s)", code, len(public))
	}
	var all []models.SystemMessage
	if code := a.do(http.MethodGet, "/api/tenders/t-1/messages?limit=10", official, "", &all); code != http.StatusOK || len(all) != 2 {
		t.Fatalf("official messages: %d, %d message(s)", code, len(all))
	}
	if code := a.do(http.MethodGet, "/api/tenders/t-1/messages?limit=0", official, "", nil); code != http.StatusBadRequest {
		t.Fatalf("limit=0: %d, want 400", code)
	}
	if code := a.do(http.MethodGet, "/api/tenders/t-404", official, "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown tender: %d, want 404", code)
	}
}
