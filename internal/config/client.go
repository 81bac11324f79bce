package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/gophreview/internal/models"
)

// Client настройки клиента
type Client struct {
	Server struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"server"`

	Peer struct {
		ID   string `mapstructure:"id"`
		Name string `mapstructure:"name"`
		Role string `mapstructure:"role"`
	} `mapstructure:"peer"`

	Auth struct {
		Token      string `mapstructure:"token"`
		Passphrase string `mapstructure:"passphrase"`
	} `mapstructure:"auth"`

	Cache struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"cache"`

	Log       Log           `mapstructure:"log"`
	Keepalive time.Duration `mapstructure:"keepalive"`
}

// SetClientDefaults регистрирует все ключи клиента
func SetClientDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")
	v.SetDefault("peer.id", "")
	v.SetDefault("peer.name", "")
	v.SetDefault("peer.role", "reviewer")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.passphrase", "")
	v.SetDefault("cache.path", filepath.Join(DefaultDataDir(), "client.db"))
	v.SetDefault("keepalive", DefaultKeepalive)
	v.SetDefault("log.level", DefaultClientLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// LoadClient читает и проверяет настройки клиента
func LoadClient(v *viper.Viper) (*Client, error) {
	SetClientDefaults(v)

	var cfg Client
	if err := unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет настройки клиента
func (c *Client) Validate() error {
	if c.Server.URL == "" {
		return ErrMissingServerURL
	}
	switch models.Role(c.Peer.Role) {
	case models.RoleReviewer, models.RoleViewer:
	default:
		return ErrInvalidRole
	}
	if c.Keepalive <= 0 {
		return ErrInvalidKeepalive
	}
	return c.Log.Validate()
}
