// Package credential отвечает за хеширование паролей пользователей.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const keyLength = 32

// Hasher хеширует пароли по схеме PBKDF2-HMAC-SHA256.
// Результат детерминирован при одинаковых соли и числе итераций,
// поэтому хеш можно использовать как условие поиска в хранилище.
type Hasher struct {
	salt       []byte
	iterations int
}

// NewHasher создаёт Hasher с указанной солью и числом итераций.
func NewHasher(salt string, iterations int) *Hasher {
	return &Hasher{
		salt:       []byte(salt),
		iterations: iterations,
	}
}

// Hash возвращает hex-представление хеша пароля.
func (h *Hasher) Hash(password string) string {
	key := pbkdf2.Key([]byte(password), h.salt, h.iterations, keyLength, sha256.New)
	return hex.EncodeToString(key)
}

// Verify сравнивает пароль с сохранённым хешем за постоянное время.
func (h *Hasher) Verify(storedHash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(h.Hash(password))) == 1
}
