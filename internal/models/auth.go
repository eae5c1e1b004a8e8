package models

// LoginRequest представляет тело запроса на вход администратора.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	Token string `json:"token"`
}
