// Package discovery объявляет мастер-сессии в локальной сети через mDNS
// и находит их на стороне клиента.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Service тип сервиса mDNS
const (
	Service = "_gophreview._tcp"
	Domain  = "local."
)

// Ключи TXT-записей
const (
	txtID   = "id"
	txtName = "name"
	txtDoc  = "doc"
)

// ErrInvalidPort возвращается для порта вне диапазона 1..65535
var ErrInvalidPort = errors.New("invalid port")

// Announcement описывает объявляемую сессию
type Announcement struct {
	SessionID  string
	MasterName string
	Document   string
	Port       int
}

// Entry найденная в сети сессия
type Entry struct {
	Instance   string
	SessionID  string
	MasterName string
	Document   string
	Host       string
	Addrs      []string
	Port       int
}

// URL возвращает websocket-адрес найденной сессии
func (e Entry) URL() string {
	host := e.Host
	if len(e.Addrs) > 0 {
		host = e.Addrs[0]
	}
	host = strings.TrimSuffix(host, ".")
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("ws://%s:%d/ws", host, e.Port)
}

// Advertiser держит регистрацию mDNS до Shutdown
type Advertiser struct {
	server *zeroconf.Server
	logger *slog.Logger
}

// Advertise регистрирует сессию в локальной сети
func Advertise(a Announcement, logger *slog.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if a.Port <= 0 || a.Port > 65535 {
		return nil, ErrInvalidPort
	}

	host, _ := os.Hostname()
	instance := fmt.Sprintf("gophreview-%s-%s", host, a.SessionID)

	server, err := zeroconf.Register(instance, Service, Domain, a.Port, TXT(a), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("mDNS service registered", "instance", instance, "port", a.Port)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown снимает регистрацию
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mDNS service unregistered")
}

// TXT собирает TXT-записи объявления
func TXT(a Announcement) []string {
	return []string{
		txtID + "=" + a.SessionID,
		txtName + "=" + a.MasterName,
		txtDoc + "=" + a.Document,
	}
}

// ParseEntry переводит запись zeroconf в Entry. Записи без id сессии отбрасываются.
func ParseEntry(se *zeroconf.ServiceEntry) (Entry, bool) {
	if se == nil {
		return Entry{}, false
	}
	e := Entry{
		Instance: se.Instance,
		Host:     se.HostName,
		Port:     se.Port,
	}
	for _, kv := range se.Text {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case txtID:
			e.SessionID = value
		case txtName:
			e.MasterName = value
		case txtDoc:
			e.Document = value
		}
	}
	for _, ip := range se.AddrIPv4 {
		e.Addrs = append(e.Addrs, ip.String())
	}
	for _, ip := range se.AddrIPv6 {
		e.Addrs = append(e.Addrs, ip.String())
	}
	if e.SessionID == "" {
		return Entry{}, false
	}
	return e, true
}

// Browse ищет сессии до отмены ctx и вызывает found для каждой новой.
func Browse(ctx context.Context, found func(Entry), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for se := range entries {
			entry, ok := ParseEntry(se)
			if !ok || seen[entry.Instance] {
				continue
			}
			seen[entry.Instance] = true
			logger.Debug("mDNS discovered session", "session_id", entry.SessionID, "port", entry.Port)
			found(entry)
		}
	}()

	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return nil
}
