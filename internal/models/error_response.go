package models

import (
	"errors"
	"net/http"
)

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"reason"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{ErrOpenResourcesExist, http.StatusConflict, "open_resources_exist"},
	{ErrDuplicate, http.StatusConflict, "duplicate"},
	{ErrTenderNotFound, http.StatusNotFound, "tender_not_found"},
	{ErrLotNotFound, http.StatusNotFound, "lot_not_found"},
	{ErrResourceNotFound, http.StatusNotFound, "resource_not_found"},
	{ErrSupplierNotFound, http.StatusNotFound, "supplier_not_found"},
	{ErrBidNotFound, http.StatusNotFound, "bid_not_found"},
	{ErrInvalidBidValue, http.StatusUnprocessableEntity, "invalid_bid_value"},
	{ErrMissingJustification, http.StatusUnprocessableEntity, "missing_justification"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// ResponseFor переводит ошибку сервиса в ответ. Сбой хранилища скрывается за
// общим предложением повторить запрос.
func ResponseFor(err error) *ErrorResponse {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return &ErrorResponse{StatusCode: c.status, Code: c.code, Message: err.Error()}
		}
	}
	return &ErrorResponse{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "store_failure",
		Message:    "temporary failure, please retry",
	}
}
