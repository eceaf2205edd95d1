package models

import "time"

type (
	ResourcePhase string // Фаза жалобы
	Decision      string // Решение по жалобе
)

const (
	ResourcePending      ResourcePhase = "pending"
	ResourceManifested   ResourcePhase = "manifested"
	ResourceSubmitted    ResourcePhase = "submitted"
	ResourceNotSubmitted ResourcePhase = "not_submitted"
	ResourceJudged       ResourcePhase = "judged"

	Procedente   Decision = "procedente"
	Improcedente Decision = "improcedente"
)

var resourceTransitions = map[ResourcePhase][]ResourcePhase{
	ResourcePending:    {ResourceManifested},
	ResourceManifested: {ResourceSubmitted, ResourceNotSubmitted},
	ResourceSubmitted:  {ResourceJudged},
}

// CanTransition проверяет допустимость перехода жалобы.
func (p ResourcePhase) CanTransition(to ResourcePhase) bool {
	return contains(resourceTransitions[p], to)
}

// Open сообщает, блокирует ли жалоба в этой фазе адъюдикацию.
func (p ResourcePhase) Open() bool {
	return p == ResourceManifested || p == ResourceSubmitted
}

// Valid проверяет решение.
func (d Decision) Valid() bool {
	return d == Procedente || d == Improcedente
}

// Resource - жалоба (recurso) участника по лоту.
type Resource struct {
	ID                      string            `json:"id"`
	LotID                   string            `json:"lotId"`
	SupplierID              string            `json:"supplierId"`
	Phase                   ResourcePhase     `json:"phase"`
	ManifestedAt            time.Time         `json:"manifestedAt"`
	SubmissionDeadline      time.Time         `json:"submissionDeadline"`
	SubmittedAt             *time.Time        `json:"submittedAt,omitempty"`
	CounterArgumentDeadline *time.Time        `json:"counterArgumentDeadline,omitempty"`
	Content                 string            `json:"content,omitempty"`
	CounterArguments        []CounterArgument `json:"counterArguments"`
	Judgment                *Judgment         `json:"judgment,omitempty"`
}

// CounterArgument - контраргумент другого участника.
type CounterArgument struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	SupplierID string    `json:"supplierId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Judgment - решение по жалобе.
type Judgment struct {
	Decision      Decision  `json:"decision"`
	Justification string    `json:"justification"`
	JudgeID       string    `json:"judgeId"`
	JudgedAt      time.Time `json:"judgedAt"`
}
