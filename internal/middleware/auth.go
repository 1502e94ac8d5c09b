package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

const authCookieName = "auth_token"

// claims — полезная нагрузка токена: идентификатор пользователя.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// SetLoginCookie подписывает JWT с user_id и кладёт его в cookie ответа.
func SetLoginCookie(w http.ResponseWriter, userID, secret string) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
	return nil
}

// WithAuth извлекает user_id из cookie и кладёт его в контекст запроса.
// Отсутствие или невалидность токена не ошибка: запрос идёт дальше
// анонимным, решение об отказе принимает хендлер.
func WithAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(authCookieName)
			if err == nil {
				c := &claims{}
				token, err := jwt.ParseWithClaims(cookie.Value, c, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
					}
					return []byte(secret), nil
				})
				if err == nil && token.Valid && c.UserID != "" {
					r = r.WithContext(context.WithValue(r.Context(), userIDKey, c.UserID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserIDFromContext возвращает user_id, положенный WithAuth.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok
}
