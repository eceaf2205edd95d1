package models

import "time"

type (
	LotStatus     string // Статус лота
	Criterion     string // Критерий определения лучшего предложения
	ResourceStage string // Этап обжалования по лоту
)

const (
	LotWaiting          LotStatus = "waiting"
	LotProposalAnalysis LotStatus = "proposal_analysis" // лот готов к диспуту
	LotOpen             LotStatus = "open"
	LotPaused           LotStatus = "paused"
	LotFinished         LotStatus = "finished"
	LotNegotiation      LotStatus = "negotiation"
	LotWinnerDeclared   LotStatus = "winner_declared"
	LotResourcePhase    LotStatus = "resource_phase"
	LotAdjudicated      LotStatus = "adjudicated"
	LotHomologated      LotStatus = "homologated"
	LotRevoked          LotStatus = "revoked"
	LotCanceled         LotStatus = "canceled"

	LowestPrice     Criterion = "lowest_price"
	HighestDiscount Criterion = "highest_discount"

	StageNotStarted        ResourceStage = "not_started"
	StageManifestationOpen ResourceStage = "manifestation_open"
	StageWaitingResource   ResourceStage = "waiting_resource"
	StageResourceSubmitted ResourceStage = "resource_submitted"
	StageCounterArgument   ResourceStage = "counter_argument"
	StageJudgment          ResourceStage = "judgment"
)

var lotTransitions = map[LotStatus][]LotStatus{
	LotWaiting:          {LotProposalAnalysis, LotOpen},
	LotProposalAnalysis: {LotOpen},
	LotOpen:             {LotPaused, LotFinished},
	LotPaused:           {LotOpen, LotFinished},
	LotFinished:         {LotOpen, LotNegotiation, LotWinnerDeclared},
	LotNegotiation:      {LotWinnerDeclared},
	LotWinnerDeclared:   {LotResourcePhase, LotAdjudicated},
	LotResourcePhase:    {LotAdjudicated},
	LotAdjudicated:      {LotHomologated, LotWinnerDeclared},
	LotHomologated:      {LotWinnerDeclared},
}

var stageTransitions = map[ResourceStage][]ResourceStage{
	StageNotStarted:        {StageManifestationOpen},
	StageManifestationOpen: {StageWaitingResource, StageJudgment},
	StageWaitingResource:   {StageResourceSubmitted, StageJudgment},
	StageResourceSubmitted: {StageCounterArgument, StageJudgment},
	StageCounterArgument:   {StageJudgment},
}

// Terminal сообщает, является ли статус лота конечным (отзыв или аннулирование).
func (s LotStatus) Terminal() bool {
	return s == LotRevoked || s == LotCanceled
}

// CanTransition проверяет допустимость перехода лота в статус to.
// Отзыв и аннулирование доступны из любого не конечного статуса.
func (s LotStatus) CanTransition(to LotStatus) bool {
	if s.Terminal() {
		return false
	}
	if to.Terminal() {
		return true
	}
	return contains(lotTransitions[s], to)
}

// CanTransition проверяет допустимость перехода этапа обжалования.
func (s ResourceStage) CanTransition(to ResourceStage) bool {
	return contains(stageTransitions[s], to)
}

// Valid проверяет критерий.
func (c Criterion) Valid() bool {
	return c == LowestPrice || c == HighestDiscount
}

// Lot представляет лот закупки.
type Lot struct {
	ID                    string        `json:"id"`
	TenderID              string        `json:"tenderId"`
	Number                string        `json:"number"`
	Description           string        `json:"description"`
	EstimatedValue        float64       `json:"estimatedValue"`
	Criterion             Criterion     `json:"criterion"`
	Status                LotStatus     `json:"status"`
	ResourceStage         ResourceStage `json:"resourceStage"`
	ManifestationDeadline *time.Time    `json:"manifestationDeadline,omitempty"`
	NegotiatingSupplierID string        `json:"negotiatingSupplierId,omitempty"`
	WinnerID              string        `json:"winnerId,omitempty"`
	Items                 []Item        `json:"items"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// Item - позиция лота.
type Item struct {
	ID             string  `json:"id"`
	LotID          string  `json:"lotId"`
	Position       int     `json:"position"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	ReferencePrice float64 `json:"referencePrice"`
	PriceHidden    bool    `json:"priceHidden"`
}
