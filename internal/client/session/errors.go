package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected = errors.New("session is already connected")
	ErrNotConnected     = errors.New("session is not connected")
	ErrBlockExists      = errors.New("annotation already exists")
	ErrBlockNotFound    = errors.New("annotation not found")
	ErrNoSession        = errors.New("session id is not known yet")
	ErrHandshake        = errors.New("connection closed before auth_ok")
)

// CloseError соединение закрыто мастером с кодом code
type CloseError struct {
	Reason string
	Code   int
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed by master (code %d)", e.Code)
	}
	return fmt.Sprintf("connection closed by master (code %d): %s", e.Code, e.Reason)
}

// ReconnectExhaustedError все попытки переподключения исчерпаны
type ReconnectExhaustedError struct {
	Err      error // ошибка последней попытки
	Attempts int
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("reconnect failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ReconnectExhaustedError) Unwrap() error {
	return e.Err
}
