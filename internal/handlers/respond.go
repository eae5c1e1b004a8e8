package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// Сообщения, которые видит пользователь.
const (
	msgBadRequest    = "요청 형식이 올바르지 않습니다."
	msgInternalError = "서버 오류가 발생했습니다."
	msgNotFound      = "기록을 찾을 수 없습니다."
	msgNoFiles       = "파일이 없습니다."
	msgBadDate       = "날짜 형식이 올바르지 않습니다."
)

// errorResponse - тело ответа с ошибкой.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON отправляет значение в JSON с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Клиент уже получил статус, сложно что-то изменить
		log.Printf("[Handlers] Ошибка кодирования ответа: %v", err)
	}
}

// writeError отправляет ошибку в формате {ok:false, error}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message})
}
