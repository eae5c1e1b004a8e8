package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Тип для ключа контекста.
type contextKey string

// Ключ для хранения имени администратора в контексте.
const AdminKey contextKey = "admin"

// TokenCookieName - имя cookie, в которой браузер хранит токен администратора.
const TokenCookieName = "admin_token"

const (
	adminRole           = "admin"
	msgAuthRequired     = "로그인이 필요합니다."
	msgInvalidToken     = "인증이 만료되었거나 올바르지 않습니다."
	msgInvalidTokenForm = "인증 형식이 올바르지 않습니다."
)

// Структура для данных администратора в JWT (claims) - должна совпадать с той, что в services.
type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator проверяет JWT токен администратора из заголовка
// Authorization или из cookie admin_token.
func Authenticator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractToken(r)
			if !ok {
				if r.Header.Get("Authorization") != "" {
					log.Printf("[AuthMiddleware] Неверный формат заголовка Authorization")
					unauthorized(w, msgInvalidTokenForm)
					return
				}
				log.Println("[AuthMiddleware] Токен отсутствует")
				unauthorized(w, msgAuthRequired)
				return
			}

			// Парсим и валидируем токен
			claims := &jwtClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				// Убеждаемся, что метод подписи - HS256
				if _, isHMAC := token.Method.(*jwt.SigningMethodHMAC); !isHMAC {
					return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil {
				log.Printf("[AuthMiddleware] Ошибка парсинга/валидации токена: %v", err)
				unauthorized(w, msgInvalidToken)
				return
			}

			// Проверяем валидность токена и роль
			if !token.Valid || claims.Role != adminRole || claims.Subject == "" {
				log.Println("[AuthMiddleware] Предоставлен невалидный токен")
				unauthorized(w, msgInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), AdminKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken достает токен из заголовка "Bearer <token>", а при его
// отсутствии из cookie. Второе значение false, если токена нет или
// заголовок имеет неверный формат.
func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") || headerParts[1] == "" {
			return "", false
		}
		return headerParts[1], true
	}

	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": message})
}

// GetAdminFromContext извлекает имя администратора из контекста запроса.
func GetAdminFromContext(ctx context.Context) (string, bool) {
	admin, ok := ctx.Value(AdminKey).(string)
	return admin, ok
}
