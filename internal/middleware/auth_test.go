package middleware_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bough38-web/inspection-app/internal/middleware"
)

var jwtSecretKey = []byte("test-secret-key")

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func TestGetAdminFromContext(t *testing.T) {
	tests := []struct {
		name          string
		ctx           context.Context
		expectedAdmin string
		expectedOK    bool
	}{
		{
			name:          "Контекст с администратором",
			ctx:           context.WithValue(context.Background(), middleware.AdminKey, "admin"),
			expectedAdmin: "admin",
			expectedOK:    true,
		},
		{
			name:       "Пустой контекст",
			ctx:        context.Background(),
			expectedOK: false,
		},
		{
			name:       "Значение неверного типа",
			ctx:        context.WithValue(context.Background(), middleware.AdminKey, 42),
			expectedOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, ok := middleware.GetAdminFromContext(tt.ctx)
			assert.Equal(t, tt.expectedAdmin, admin)
			assert.Equal(t, tt.expectedOK, ok)
		})
	}
}

// Вспомогательная функция для генерации JWT токена.
func generateTestToken(t *testing.T, role string, secretKey []byte, expiresAt time.Time) string {
	t.Helper()
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "test-issuer",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	require.NoError(t, err, "Ошибка генерации тестового токена")
	return token
}

func TestAuthenticator(t *testing.T) {
	// Обработчик, который будет вызван после middleware
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := middleware.GetAdminFromContext(r.Context())
		assert.True(t, ok, "Администратор должен быть в контексте")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("OK for %s", admin)))
	})

	server := httptest.NewServer(middleware.Authenticator(jwtSecretKey)(nextHandler))
	defer server.Close()

	valid := generateTestToken(t, "admin", jwtSecretKey, time.Now().Add(time.Hour))

	tests := []struct {
		name           string
		header         string // Содержимое заголовка Authorization
		cookie         string // Значение cookie admin_token
		expectedStatus int
		expectedBody   string // Подстрока в теле ответа
	}{
		{
			name:           "Успешная аутентификация по заголовку",
			header:         "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedBody:   "OK for admin",
		},
		{
			name:           "Успешная аутентификация по cookie",
			cookie:         valid,
			expectedStatus: http.StatusOK,
			expectedBody:   "OK for admin",
		},
		{
			name:           "Нет ни заголовка, ни cookie",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "로그인이 필요합니다.",
		},
		{
			name:           "Неверный формат заголовка (нет Bearer)",
			header:         valid,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증 형식이 올바르지 않습니다.",
		},
		{
			name:           "Неверный формат заголовка (лишнее слово)",
			header:         "Bearer extra " + valid,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증 형식이 올바르지 않습니다.",
		},
		{
			name:           "Неверный секрет",
			header:         "Bearer " + generateTestToken(t, "admin", []byte("wrong-secret"), time.Now().Add(time.Hour)),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증이 만료되었거나",
		},
		{
			name:           "Истекший токен в cookie",
			cookie:         generateTestToken(t, "admin", jwtSecretKey, time.Now().Add(-time.Hour)),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증이 만료되었거나",
		},
		{
			name:           "Токен без роли администратора",
			header:         "Bearer " + generateTestToken(t, "viewer", jwtSecretKey, time.Now().Add(time.Hour)),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증이 만료되었거나",
		},
		{
			name:           "Мусор вместо токена",
			header:         "Bearer garbage",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "인증이 만료되었거나",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: tt.cookie})
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			bodyBytes, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(bodyBytes), tt.expectedBody)
		})
	}
}
