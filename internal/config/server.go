package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Server настройки мастер-процесса
type Server struct {
	Listen struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"listen"`

	Session struct {
		Document string        `mapstructure:"document"`
		Name     string        `mapstructure:"name"`
		Resume   string        `mapstructure:"resume"`
		Autosave time.Duration `mapstructure:"autosave"`
		Sidecar  bool          `mapstructure:"sidecar"`
	} `mapstructure:"session"`

	Storage struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"storage"`

	Journal struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"journal"`

	Auth struct {
		Secret       string `mapstructure:"secret"`
		Passphrase   string `mapstructure:"passphrase"`
		RequireToken bool   `mapstructure:"require_token"`
	} `mapstructure:"auth"`

	RateLimit struct {
		Ops    int           `mapstructure:"ops"`
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"ratelimit"`

	Discovery struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"discovery"`

	Watch struct {
		Document bool `mapstructure:"document"`
	} `mapstructure:"watch"`

	Log Log `mapstructure:"log"`
}

// SetServerDefaults регистрирует все ключи мастера, чтобы AutomaticEnv их видел
func SetServerDefaults(v *viper.Viper) {
	v.SetDefault("listen.host", "")
	v.SetDefault("listen.port", DefaultPort)
	v.SetDefault("session.document", "")
	v.SetDefault("session.name", "")
	v.SetDefault("session.resume", "")
	v.SetDefault("session.autosave", DefaultAutosave)
	v.SetDefault("session.sidecar", true)
	v.SetDefault("storage.dir", filepath.Join(DefaultDataDir(), "sessions"))
	v.SetDefault("journal.path", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.passphrase", "")
	v.SetDefault("auth.require_token", false)
	v.SetDefault("ratelimit.ops", DefaultRateLimitOps)
	v.SetDefault("ratelimit.window", DefaultRateLimitWindow)
	v.SetDefault("discovery.enabled", false)
	v.SetDefault("watch.document", false)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// LoadServer читает и проверяет настройки мастера.
// Документ не обязателен при возобновлении сессии: путь берется из сохраненных метаданных.
func LoadServer(v *viper.Viper) (*Server, error) {
	SetServerDefaults(v)

	var cfg Server
	if err := unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет настройки мастера
func (c *Server) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Session.Document == "" && c.Session.Resume == "" {
		return ErrMissingDocument
	}
	if c.Session.Autosave < 0 {
		return ErrInvalidAutosave
	}
	if c.RateLimit.Ops <= 0 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	return c.Log.Validate()
}

// Addr возвращает адрес для net.Listen
func (c *Server) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}
