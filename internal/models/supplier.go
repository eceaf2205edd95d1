package models

type SupplierStatus string // Статус участника в лоте

const (
	SupplierClassified   SupplierStatus = "classified"
	SupplierDisqualified SupplierStatus = "disqualified"
	SupplierWinner       SupplierStatus = "winner"
	SupplierEliminated   SupplierStatus = "eliminated"
)

// Supplier - запись об участии компании в конкретном лоте.
// Одна и та же компания имеет независимые записи в разных лотах.
type Supplier struct {
	ID          string         `json:"id"`
	LotID       string         `json:"lotId"`
	AccountID   string         `json:"accountId"`
	DisplayName string         `json:"displayName"`
	Company     string         `json:"company"`
	Value       *float64       `json:"value,omitempty"`
	Status      SupplierStatus `json:"status"`
}
