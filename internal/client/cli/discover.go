package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/iudanet/gophreview/internal/client/api"
	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/discovery"
	"github.com/iudanet/gophreview/internal/models"
)

// Browser ищет объявленные в сети сессии
type Browser func(ctx context.Context, found func(discovery.Entry), logger *slog.Logger) error

// RunDiscover ищет сессии в локальной сети в течение timeout
func RunDiscover(ctx context.Context, console iocli.IO, browse Browser, timeout time.Duration, logger *slog.Logger) error {
	if browse == nil {
		browse = discovery.Browse
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	console.Printf("Searching for sessions (%s)...\n", timeout)
	count := 0
	err := browse(ctx, func(e discovery.Entry) {
		count++
		console.Printf("%d. %s by %s\n", count, e.Document, e.MasterName)
		console.Printf("   ID:  %s\n", e.SessionID)
		console.Printf("   URL: %s\n", e.URL())
	}, logger)
	if err != nil {
		return err
	}
	if count == 0 {
		console.Println("No sessions found.")
	}
	return nil
}

// RunToken запрашивает у мастера приглашение для роли role
func RunToken(ctx context.Context, console iocli.IO, client *api.Client, role models.Role, ttl time.Duration) error {
	resp, err := client.IssueToken(ctx, role, ttl)
	if err != nil {
		return err
	}
	console.Printf("Invite token (%s, expires in %s):\n", resp.Role, time.Duration(resp.ExpiresIn)*time.Second)
	console.Println(resp.Token)
	return nil
}

// HTTPBase переводит websocket-адрес мастера в адрес HTTP API
func HTTPBase(wsURL string) (string, error) {
	u, err := parseURL(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u, nil
}
