// Package config загружает настройки мастера и клиента через viper.
//
// Порядок источников: значения по умолчанию, файл конфигурации (YAML/TOML),
// переменные окружения GOPHREVIEW_*, флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "GOPHREVIEW"

// Значения по умолчанию
const (
	DefaultPort            = 4455
	DefaultAutosave        = 30 * time.Second
	DefaultRateLimitOps    = 60
	DefaultRateLimitWindow = time.Minute
	DefaultKeepalive       = 25 * time.Second
	DefaultLogLevel        = "info"
	DefaultClientLogLevel  = "warn" // клиент интерактивный, лог не должен мешать вводу
	DefaultLogFormat       = "text"
)

var (
	ErrInvalidPort      = errors.New("listen.port must be in 0..65535")
	ErrMissingDocument  = errors.New("session.document is required")
	ErrInvalidAutosave  = errors.New("session.autosave must not be negative")
	ErrInvalidRateLimit = errors.New("ratelimit.ops and ratelimit.window must be positive")
	ErrInvalidLogLevel  = errors.New("log.level must be one of debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("log.format must be text or json")
	ErrMissingServerURL = errors.New("server.url is required")
	ErrInvalidRole      = errors.New("peer.role must be reviewer or viewer")
	ErrInvalidKeepalive = errors.New("keepalive must be positive")
)

// Log настройки логирования
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate проверяет уровень и формат
func (l Log) Validate() error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "", "text", "json":
		return nil
	default:
		return ErrInvalidLogFormat
	}
}

// NewLogger создает логгер, пишущий в w
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

// New создает viper с префиксом окружения. configFile пустой - файл не читается.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return v, nil
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found: %w", configFile, err)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return v, nil
}

// DefaultDataDir возвращает ~/.gophreview
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gophreview"
	}
	return filepath.Join(home, ".gophreview")
}

func unmarshal(v *viper.Viper, out any) error {
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
