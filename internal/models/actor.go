package models

type Role string // Роль пользователя

const (
	RoleCitizen      Role = "citizen"
	RoleSupplier     Role = "supplier"
	RoleAgency       Role = "agency"
	RoleAdmin        Role = "admin"
	RoleSupport      Role = "support"
	RoleRegistration Role = "registration"

	// Роли, назначаемые в рамках конкретной закупки.
	RoleAuctioneer Role = "auctioneer"
	RoleAuthority  Role = "authority"
)

// Actor - пользователь, от имени которого выполняется операция.
// Roles - общие роли профиля, Assignments - роли в отдельных закупках.
type Actor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Roles       []Role            `json:"roles"`
	Assignments map[string][]Role `json:"assignments"`
	System      bool              `json:"-"`
}

// SystemActor - внутренний исполнитель фоновых задач.
var SystemActor = Actor{ID: "system", Name: "Sistema", System: true}

// HasRole проверяет наличие роли профиля.
func (a Actor) HasRole(role Role) bool {
	return contains(a.Roles, role)
}

// HasRoleIn проверяет, назначена ли пользователю роль в закупке tenderID.
func (a Actor) HasRoleIn(role Role, tenderID string) bool {
	return contains(a.Assignments[tenderID], role)
}
