// Package crypto хеширует парольную фразу сессии (Argon2id).
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина хеша в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

// ErrEmptyPassphrase возвращается при попытке захешировать пустую фразу
var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// PassphraseHash хеш парольной фразы и соль в Base64 (так они хранятся в meta сессии)
type PassphraseHash struct {
	Hash string
	Salt string
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// HashPassphrase хеширует фразу со свежей солью
func HashPassphrase(passphrase string) (*PassphraseHash, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	return &PassphraseHash{
		Hash: base64.StdEncoding.EncodeToString(derive(passphrase, salt)),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Verify сравнивает фразу с хешем за постоянное время
func (h *PassphraseHash) Verify(passphrase string) bool {
	if h == nil || passphrase == "" {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(h.Salt)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(h.Hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derive(passphrase, salt), expected) == 1
}

func derive(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
}
