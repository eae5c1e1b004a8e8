package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bough38-web/inspection-app/internal/middleware"
	"github.com/bough38-web/inspection-app/internal/models"
	"github.com/bough38-web/inspection-app/internal/services"
)

const (
	msgEmptyCredentials   = "아이디와 비밀번호를 입력해주세요."
	msgInvalidCredentials = "아이디 또는 비밀번호가 올바르지 않습니다."
	msgLoginDisabled      = "관리자 로그인이 설정되지 않았습니다."
)

// AuthHandler обрабатывает HTTP-запросы, связанные с входом администратора.
type AuthHandler struct {
	service services.AuthService // Зависимость от интерфейса, а не конкретной реализации
}

// NewAuthHandler создает новый экземпляр AuthHandler.
func NewAuthHandler(s services.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Login обрабатывает запрос на вход администратора.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	// Декодируем JSON из тела запроса
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AuthHandler] Ошибка декодирования запроса входа: %v", err)
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		log.Printf("[AuthHandler] Пустое имя пользователя или пароль при входе")
		writeError(w, http.StatusBadRequest, msgEmptyCredentials)
		return
	}

	token, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLoginDisabled):
			writeError(w, http.StatusServiceUnavailable, msgLoginDisabled)
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			log.Printf("[AuthHandler] Ошибка сервиса при входе '%s': %v", req.Username, err)
			writeError(w, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token})
	log.Printf("[AuthHandler] Успешный вход администратора: %s", req.Username)
}

// Logout удаляет cookie с токеном.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
