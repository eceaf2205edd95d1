package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens выпускает и проверяет токены пользователей, подписанные HS256.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens создаёт Tokens с секретом подписи и сроком жизни токена.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}, nil
}

// Issue выпускает токен для пользователя.
func (t *Tokens) Issue(actor models.Actor, now time.Time) (string, error) {
	roles := make([]string, 0, len(actor.Roles))
	for _, role := range actor.Roles {
		roles = append(roles, string(role))
	}
	claims := jwt.MapClaims{
		"sub":     actor.ID,
		"name":    actor.Name,
		"roles":   roles,
		"tenders": assignments(actor.Assignments),
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse проверяет подпись и срок действия токена и возвращает пользователя.
func (t *Tokens) Parse(tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return models.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Actor{}, errors.New("invalid subject claim")
	}

	actor := models.Actor{ID: sub}
	actor.Name, _ = claims["name"].(string)
	for _, role := range stringList(claims["roles"]) {
		actor.Roles = append(actor.Roles, models.Role(role))
	}
	if raw, ok := claims["tenders"].(map[string]interface{}); ok {
		actor.Assignments = make(map[string][]models.Role, len(raw))
		for tenderID, roles := range raw {
			for _, role := range stringList(roles) {
				actor.Assignments[tenderID] = append(actor.Assignments[tenderID], models.Role(role))
			}
		}
	}
	return actor, nil
}

// assignments переводит роли по закупкам в claim вида {"t-1": ["auctioneer"]}.
func assignments(in map[string][]models.Role) map[string][]string {
	out := make(map[string][]string, len(in))
	for tenderID, roles := range in {
		for _, role := range roles {
			out[tenderID] = append(out[tenderID], string(role))
		}
	}
	return out
}

func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
