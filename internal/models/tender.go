package models

import "time"

type (
	TenderStatus string // Статус процесса закупки
	DisputeMode  string // Режим проведения диспута
)

const (
	TenderDraft             TenderStatus = "draft"
	TenderPublished         TenderStatus = "published"
	TenderWaitingOpening    TenderStatus = "waiting_opening"
	TenderProposalAnalysis  TenderStatus = "proposal_analysis"
	TenderDispute           TenderStatus = "dispute"
	TenderNegotiation       TenderStatus = "negotiation"
	TenderDocumentAnalysis  TenderStatus = "document_analysis"
	TenderWinnerDeclaration TenderStatus = "winner_declaration"
	TenderResourcePhase     TenderStatus = "resource_phase"
	TenderAdjudication      TenderStatus = "adjudication"
	TenderHomologation      TenderStatus = "homologation"
	TenderRevoked           TenderStatus = "revoked"
	TenderCanceled          TenderStatus = "canceled"

	DisputeOpen        DisputeMode = "open"
	DisputeOpenRestart DisputeMode = "open_restart"
	DisputeClosed      DisputeMode = "closed"
	DisputeOpenClosed  DisputeMode = "open_closed"
	DisputeClosedOpen  DisputeMode = "closed_open"
	DisputeRandom      DisputeMode = "random"
)

// inProgressTender - этапы, между которыми процесс может переходить в любом порядке,
// потому что лоты одной закупки движутся независимо.
var inProgressTender = []TenderStatus{
	TenderProposalAnalysis,
	TenderDispute,
	TenderNegotiation,
	TenderDocumentAnalysis,
	TenderWinnerDeclaration,
	TenderResourcePhase,
	TenderAdjudication,
	TenderHomologation,
}

var tenderTransitions = map[TenderStatus][]TenderStatus{
	TenderDraft:          {TenderPublished},
	TenderPublished:      {TenderWaitingOpening, TenderProposalAnalysis},
	TenderWaitingOpening: {TenderProposalAnalysis},
}

// Valid проверяет, что статус принадлежит перечислению.
func (s TenderStatus) Valid() bool {
	switch s {
	case TenderDraft, TenderPublished, TenderWaitingOpening, TenderRevoked, TenderCanceled:
		return true
	}
	return contains(inProgressTender, s)
}

// Terminal сообщает, является ли статус конечным.
func (s TenderStatus) Terminal() bool {
	return s == TenderRevoked || s == TenderCanceled
}

// CanTransition проверяет допустимость перехода процесса в статус to.
func (s TenderStatus) CanTransition(to TenderStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to.Terminal() {
		return true
	}
	if contains(inProgressTender, s) {
		return contains(inProgressTender, to)
	}
	return contains(tenderTransitions[s], to)
}

// Tender - агрегат процесса закупки.
type Tender struct {
	ID                  string       `json:"id"`
	Number              string       `json:"number"`
	Title               string       `json:"title"`
	AgencyID            string       `json:"agencyId"`
	Status              TenderStatus `json:"status"`
	DisputeMode         DisputeMode  `json:"disputeMode"`
	ImpugnationDeadline *time.Time   `json:"impugnationDeadline,omitempty"`
	ProposalDeadline    *time.Time   `json:"proposalDeadline,omitempty"`
	SessionOpensAt      *time.Time   `json:"sessionOpensAt,omitempty"`
	ActiveLotID         string       `json:"activeLotId,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
