package models

import "time"

type MessageType string // Тип сообщения журнала

const (
	MessageSystem MessageType = "system"
	MessageChat   MessageType = "chat"
	MessageBid    MessageType = "bid"
)

// SystemMessage - запись журнала событий процесса. Записи только добавляются.
type SystemMessage struct {
	ID         string      `json:"id"`
	Seq        int64       `json:"seq"`
	TenderID   string      `json:"tenderId"`
	LotID      string      `json:"lotId,omitempty"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	AuthorID   string      `json:"authorId,omitempty"`
	AuthorName string      `json:"authorName,omitempty"`
	IsPrivate  bool        `json:"isPrivate"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Aggregate - полный снимок процесса закупки.
type Aggregate struct {
	Tender    Tender          `json:"tender"`
	Lots      []Lot           `json:"lots"`
	Suppliers []Supplier      `json:"suppliers"`
	Bids      []Bid           `json:"bids"`
	Resources []Resource      `json:"resources"`
	Messages  []SystemMessage `json:"messages"`
}
