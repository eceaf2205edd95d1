package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/senyabanana/licitacao-service/internal/auth"
	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/utils"
)

type actorKey struct{}

// AuthMiddleware проверяет Bearer токен и кладёт пользователя в контекст запроса.
func AuthMiddleware(tokens *auth.Tokens, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := utils.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "authorization header must be 'Bearer <token>'")
				return
			}
			actor, err := tokens.Parse(token)
			if err != nil {
				logger.Printf("rejected token: %v", err)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

// actorFrom возвращает пользователя запроса. Без middleware это пустой пользователь без ролей.
func actorFrom(r *http.Request) models.Actor {
	actor, _ := r.Context().Value(actorKey{}).(models.Actor)
	return actor
}
