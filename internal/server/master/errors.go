package master

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrAlreadyStarted повторный Start
	ErrAlreadyStarted = errors.New("session already started")
	// ErrStopped сессия остановлена и не может быть запущена снова
	ErrStopped = errors.New("session stopped")
	// ErrNotStarted операция требует запущенной сессии
	ErrNotStarted = errors.New("session not started")
	// ErrPeerNotFound пир с таким id не подключен
	ErrPeerNotFound = errors.New("peer not found")
	// ErrInvalidRole роль нельзя назначить пиру
	ErrInvalidRole = errors.New("invalid role")
	// ErrBlockExists аннотация с таким id уже есть
	ErrBlockExists = errors.New("annotation already exists")
	// ErrBlockNotFound аннотации с таким id нет
	ErrBlockNotFound = errors.New("annotation not found")
	// ErrNoDocument у сессии нет документа
	ErrNoDocument = errors.New("session has no document")
)

// BindError ошибка открытия порта. Вызывающий может предложить другой порт,
// если IsAddrInUse возвращает true.
type BindError struct {
	Err  error
	Addr string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// IsAddrInUse сообщает, что порт уже занят
func (e *BindError) IsAddrInUse() bool {
	return errors.Is(e.Err, syscall.EADDRINUSE)
}
