package validation

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// PeerIDPattern определяет допустимый формат peerId
// Латинские буквы, цифры и символы _ . : -
// Длина: 1-64 символа
var PeerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,64}$`)

const (
	// MaxDisplayNameLen максимальная длина отображаемого имени в символах
	MaxDisplayNameLen = 64
	// MinPassphraseLen минимальная длина парольной фразы сессии
	MinPassphraseLen = 8
)

// ValidatePeerID проверяет идентификатор, выбранный клиентом
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer id cannot be empty")
	}

	if !PeerIDPattern.MatchString(peerID) {
		return fmt.Errorf("peer id must be 1-64 characters of letters, digits, '_', '.', ':' or '-'")
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя участника
func ValidateDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("name must be valid UTF-8")
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxDisplayNameLen)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name cannot contain control characters")
		}
	}

	return nil
}

// ValidatePassphrase проверяет минимальные требования к парольной фразе сессии
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}

	return nil
}
