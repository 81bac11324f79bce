package crdt

import "errors"

var (
	// ErrInvalidDelta возвращается, если бинарная дельта не декодируется
	ErrInvalidDelta = errors.New("invalid delta")
	// ErrEmptyID возвращается при попытке записать аннотацию без id
	ErrEmptyID = errors.New("annotation id is empty")
	// ErrUnsupportedVersion возвращается для дельты неизвестной версии формата
	ErrUnsupportedVersion = errors.New("unsupported delta version")
	// ErrUnknownField возвращается для регистра с полем, которого нет у аннотации
	ErrUnknownField = errors.New("unknown annotation field")
	// ErrInvalidTimestamp возвращается для регистра с timestamp <= 0
	ErrInvalidTimestamp = errors.New("register timestamp must be positive")
	// ErrClockSkew возвращается для регистра, timestamp которого слишком далеко опережает часы реплики
	ErrClockSkew = errors.New("register timestamp is too far ahead")
	// ErrInvalidAlive возвращается для маркера существования с неизвестным значением
	ErrInvalidAlive = errors.New("invalid existence marker")
	// ErrStaleWrite возвращается, если локальная запись проиграла слияние
	ErrStaleWrite = errors.New("local write lost to a newer register")
)
