package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bough38-web/inspection-app/internal/handlers"
	"github.com/bough38-web/inspection-app/internal/middleware"
	"github.com/bough38-web/inspection-app/internal/services"
)

func TestNewAuthHandler(t *testing.T) {
	mockService := new(MockAuthService)
	h := handlers.NewAuthHandler(mockService)
	assert.NotNil(t, h)
}

// Вспомогательная функция для создания роутера с обработчиком.
func setupAuthRouter(h *handlers.AuthHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		mockUsername    string
		mockPassword    string
		mockReturnToken string
		mockReturnError error
		expectedStatus  int
		expectedBody    string // Проверяем подстроку в теле ответа
		expectCookie    bool
	}{
		{
			name:            "Успешный вход",
			body:            `{"username": "admin", "password": "password123"}`,
			mockUsername:    "admin",
			mockPassword:    "password123",
			mockReturnToken: "jwt-token",
			expectedStatus:  http.StatusOK,
			expectedBody:    `"token":"jwt-token"`,
			expectCookie:    true,
		},
		{
			name:            "Неверные учетные данные",
			body:            `{"username": "admin", "password": "wrong"}`,
			mockUsername:    "admin",
			mockPassword:    "wrong",
			mockReturnError: services.ErrInvalidCredentials,
			expectedStatus:  http.StatusUnauthorized,
			expectedBody:    "아이디 또는 비밀번호가 올바르지 않습니다.",
		},
		{
			name:            "Вход не настроен",
			body:            `{"username": "admin", "password": "x"}`,
			mockUsername:    "admin",
			mockPassword:    "x",
			mockReturnError: services.ErrLoginDisabled,
			expectedStatus:  http.StatusServiceUnavailable,
			expectedBody:    "관리자 로그인이 설정되지 않았습니다.",
		},
		{
			name:            "Внутренняя ошибка",
			body:            `{"username": "admin", "password": "x"}`,
			mockUsername:    "admin",
			mockPassword:    "x",
			mockReturnError: errors.New("signing failed"),
			expectedStatus:  http.StatusInternalServerError,
			expectedBody:    "서버 오류가 발생했습니다.",
		},
		{
			name:           "Невалидный JSON",
			body:           `{"username": "admin"`, // Сломанный JSON
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "요청 형식이 올바르지 않습니다.",
		},
		{
			name:           "Пустой пароль",
			body:           `{"username": "admin", "password": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "아이디와 비밀번호를 입력해주세요.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAuthService)
			router := setupAuthRouter(handlers.NewAuthHandler(mockService))

			if tt.mockUsername != "" {
				mockService.On("Login", tt.mockUsername, tt.mockPassword).
					Return(tt.mockReturnToken, tt.mockReturnError).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)

			var tokenCookie *http.Cookie
			for _, c := range rr.Result().Cookies() {
				if c.Name == middleware.TokenCookieName {
					tokenCookie = c
				}
			}
			if tt.expectCookie {
				require.NotNil(t, tokenCookie, "cookie с токеном должна быть установлена")
				assert.Equal(t, tt.mockReturnToken, tokenCookie.Value)
				assert.True(t, tokenCookie.HttpOnly)
				assert.Equal(t, int(services.TokenTTL.Seconds()), tokenCookie.MaxAge)
			} else {
				assert.Nil(t, tokenCookie)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	router := setupAuthRouter(handlers.NewAuthHandler(new(MockAuthService)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
