// Package fieldcrypt шифрует отдельное текстовое поле для хранения в БД.
//
// Формат хранения: hex(iv) + ":" + hex(ciphertext), AES-256-CBC с PKCS#7.
// Ключ - SHA-256 от секрета. Пакет никогда не возвращает ошибку наружу:
// при любом сбое возвращается исходная строка с признаком StatusFailed.
package fieldcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const ivLength = aes.BlockSize // Для AES всегда 16

// Status описывает, что произошло со значением.
type Status int

const (
	StatusOK     Status = iota // значение преобразовано
	StatusEmpty                // пустой вход, возвращён как есть
	StatusLegacy               // не похоже на шифротекст, возвращено как есть
	StatusFailed               // ошибка шифра, возвращено как есть
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusLegacy:
		return "legacy"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result - результат шифрования или расшифровки.
type Result struct {
	Value  string
	Status Status
	Err    error // причина для StatusFailed, только для логов
}

// Transformed сообщает, было ли значение действительно зашифровано/расшифровано.
func (r Result) Transformed() bool { return r.Status == StatusOK }

// ErrEmptySecret возвращается New при пустом секрете.
var ErrEmptySecret = errors.New("не задан секрет для шифрования полей")

var (
	errBadPadding = errors.New("некорректное дополнение PKCS#7")
	errBadLength  = errors.New("длина шифротекста не кратна размеру блока")
	errNotUTF8    = errors.New("расшифрованное значение не является UTF-8")
)

// Cipher шифрует и расшифровывает значения одним ключом.
// Безопасен для конкурентного использования.
type Cipher struct {
	block  cipher.Block
	random io.Reader
}

// New создаёт шифратор с ключом SHA-256(secret).
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации AES: %w", err)
	}
	return &Cipher{block: block, random: rand.Reader}, nil
}

// Encrypt шифрует значение со свежим случайным IV.
func (c *Cipher) Encrypt(plain string) Result {
	if plain == "" {
		return Result{Value: plain, Status: StatusEmpty}
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return Result{Value: plain, Status: StatusFailed, Err: fmt.Errorf("ошибка генерации IV: %w", err)}
	}

	data := pad([]byte(plain))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(data, data)

	return Result{
		Value:  hex.EncodeToString(iv) + ":" + hex.EncodeToString(data),
		Status: StatusOK,
	}
}

// Decrypt расшифровывает значение. Строки не в формате iv:data считаются
// старыми незашифрованными записями и возвращаются без изменений.
func (c *Cipher) Decrypt(stored string) Result {
	if stored == "" {
		return Result{Value: stored, Status: StatusEmpty}
	}

	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return Result{Value: stored, Status: StatusLegacy}
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return Result{Value: stored, Status: StatusLegacy}
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return failed(stored, fmt.Errorf("ошибка декодирования hex: %w", err))
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return failed(stored, errBadLength)
	}

	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(data, data)

	plain, err := unpad(data)
	if err != nil {
		return failed(stored, err)
	}
	if !utf8.Valid(plain) {
		return failed(stored, errNotUTF8)
	}
	return Result{Value: string(plain), Status: StatusOK}
}

// DecryptString - короткая форма Decrypt для мест, где важно только значение.
func (c *Cipher) DecryptString(stored string) string {
	return c.Decrypt(stored).Value
}

func failed(stored string, err error) Result {
	return Result{Value: stored, Status: StatusFailed, Err: err}
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
