package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	sendError(w, &models.ErrorResponse{StatusCode: statusCode, Message: message})
}

// SendError переводит ошибку сервиса в ответ и записывает её в лог
func SendError(w http.ResponseWriter, logger *log.Logger, err error) {
	resp := models.ResponseFor(err)
	logger.Printf("%d %s: %v", resp.StatusCode, resp.Code, err)
	sendError(w, resp)
}

func sendError(w http.ResponseWriter, resp *models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Println(err)
	}
}

// SendJSON отправляет ответ в формате JSON
func SendJSON(w http.ResponseWriter, logger *log.Logger, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Println(err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 200 {
			return 0, 0, fmt.Errorf("%w: limit must be a positive integer [1:200]", models.ErrInvalidInput)
		}
	} else {
		limit = 50
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must be a non-negative integer", models.ErrInvalidInput)
		}
	}

	return limit, offset, nil
}

// BearerToken извлекает токен из заголовка Authorization
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
