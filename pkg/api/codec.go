package api

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMissingPayload возвращается, если конверт не несет полезную нагрузку своего типа
var ErrMissingPayload = errors.New("missing payload")

// DecodeError ошибка разбора конверта. Транспорт закрывает соединение с CloseMalformed.
type DecodeError struct {
	Err  error
	Kind Kind
}

func (e *DecodeError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("decode %s envelope: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode сериализует конверт в msgpack
func Encode(env *Envelope) ([]byte, error) {
	if err := check(env); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Kind, err)
	}
	return data, nil
}

// Decode разбирает конверт. Любая ошибка, включая панику декодера, возвращается как *DecodeError.
func Decode(data []byte) (env *Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			env = nil
			err = &DecodeError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var decoded Envelope
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := check(&decoded); err != nil {
		return nil, &DecodeError{Kind: decoded.Kind, Err: err}
	}
	return &decoded, nil
}

// check проверяет, что для типа конверта есть нужная нагрузка
func check(env *Envelope) error {
	var ok bool
	switch env.Kind {
	case KindAuth:
		ok = env.Auth != nil && env.Auth.PeerID != ""
	case KindAuthOK:
		ok = env.AuthOK != nil
	case KindSync, KindAwareness:
		ok = env.Data != nil
	case KindReject:
		ok = env.Reject != nil
	case KindSession:
		ok = env.Session != nil && validAction(env.Session.Action)
	case KindRoleChange:
		ok = env.RoleChange != nil && env.RoleChange.NewRole.Valid()
	case KindDocContent:
		ok = env.DocContent != nil
	case KindPing, KindPong:
		ok = true
	default:
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}

	if !ok {
		return fmt.Errorf("%w for %s", ErrMissingPayload, env.Kind)
	}
	return nil
}

func validAction(action SessionAction) bool {
	switch action {
	case ActionJoin, ActionLeave, ActionEnd:
		return true
	}
	return false
}
