package models

import "errors"

// Ошибки предметной области. Сервисы оборачивают их через fmt.Errorf("%w: ...").
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrTenderNotFound       = errors.New("tender not found")
	ErrLotNotFound          = errors.New("lot not found")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrSupplierNotFound     = errors.New("supplier not found")
	ErrBidNotFound          = errors.New("bid not found")
	ErrInvalidBidValue      = errors.New("invalid bid value")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingJustification = errors.New("missing justification")
	ErrOpenResourcesExist   = errors.New("open resources exist")
	ErrStoreFailure         = errors.New("store failure")
	ErrDuplicate            = errors.New("duplicate record")
)

// IsNotFound сообщает, ссылается ли ошибка на несуществующую сущность.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenderNotFound) ||
		errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrSupplierNotFound) ||
		errors.Is(err, ErrBidNotFound)
}
