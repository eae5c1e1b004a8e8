package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService определяет интерфейс для входа администратора.
type AuthService interface {
	Login(username, password string) (string, error) // Возвращает JWT токен или ошибку
	Enabled() bool
}

const (
	TokenTTL    = time.Hour * 24 // Время жизни токена - 24 часа
	tokenIssuer = "inspection-server"
)

// Структура для данных администратора в JWT (claims).
type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	username     string
	passwordHash []byte // nil, если вход не настроен
	jwtSecret    []byte
	now          func() time.Time
}

// NewAuthService создает сервис входа. Пароль хешируется сразу и в памяти
// в открытом виде не хранится. При пустом пароле вход отключен.
func NewAuthService(username, password string, jwtSecret []byte) (AuthService, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("не задан секрет для подписи токенов")
	}

	s := &authService{username: username, jwtSecret: jwtSecret, now: time.Now}
	if password == "" {
		log.Println("[AuthService] Пароль администратора не задан, вход отключен")
		return s, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля администратора: %w", err)
	}
	s.passwordHash = hash
	return s, nil
}

// Enabled сообщает, настроен ли вход администратора.
func (s *authService) Enabled() bool {
	return s.passwordHash != nil
}

// Login проверяет учетные данные и возвращает JWT токен.
func (s *authService) Login(username, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrLoginDisabled
	}

	// Имя и пароль проверяются всегда оба
	nameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !nameOK || passErr != nil {
		log.Printf("[AuthService] Неудачная попытка входа под именем '%s'", username)
		return "", ErrInvalidCredentials
	}

	token, err := s.generateJWT(username)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации JWT для '%s': %v", username, err)
		return "", errors.New("внутренняя ошибка сервера при генерации токена")
	}

	log.Printf("[AuthService] Администратор '%s' успешно аутентифицирован", username)
	return token, nil
}

// generateJWT создает и подписывает JWT токен администратора.
func (s *authService) generateJWT(username string) (string, error) {
	now := s.now()
	claims := jwtClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)), // Время истечения
			IssuedAt:  jwt.NewNumericDate(now),               // Время выдачи
			NotBefore: jwt.NewNumericDate(now),               // Время, с которого токен валиден
			Issuer:    tokenIssuer,                           // Источник токена
		},
	}

	// Создаем токен с нашими claims и методом подписи HS256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	return signedToken, nil
}
