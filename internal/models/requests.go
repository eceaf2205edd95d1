package models

import "time"

// JustificationRequest - тело запросов, требующих обоснования.
// Пустое обоснование проверяется сервисом, а не валидатором.
type JustificationRequest struct {
	Justification string `json:"justification"`
}

// SupplierRequest - тело запросов, указывающих участника.
type SupplierRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
}

// WinnerRequest - тело запроса объявления победителя.
type WinnerRequest struct {
	SupplierID    string `json:"supplierId" validate:"required"`
	Justification string `json:"justification"`
}

// BidRequest - тело запроса подачи ставки. Значение передаётся строкой, как его ввёл участник.
type BidRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
	Value      string `json:"value" validate:"required"`
}

// ResourcePhaseRequest - тело запроса открытия фазы обжалования.
type ResourcePhaseRequest struct {
	Hours int `json:"hours" validate:"gt=0"`
}

// ResourceRequest - тело запроса подачи жалобы.
type ResourceRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
	Content    string `json:"content"`
}

// CounterArgumentRequest - тело запроса подачи контраргумента.
type CounterArgumentRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
	Content    string `json:"content"`
}

// JudgmentRequest - тело запроса решения по жалобе.
type JudgmentRequest struct {
	Decision      Decision `json:"decision" validate:"required,oneof=procedente improcedente"`
	Justification string   `json:"justification"`
}

// DisqualifyRequest - тело запроса дисквалификации участника.
type DisqualifyRequest struct {
	SupplierID    string `json:"supplierId" validate:"required"`
	Justification string `json:"justification"`
}

// ScheduleRequest - тело запроса назначения даты сессии.
type ScheduleRequest struct {
	OpensAt time.Time `json:"opensAt" validate:"required"`
}

// MessageRequest - тело запроса сообщения в чат процесса.
type MessageRequest struct {
	LotID   string `json:"lotId"`
	Content string `json:"content" validate:"required"`
	Private bool   `json:"private"`
}
