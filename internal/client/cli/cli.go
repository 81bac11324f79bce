// Package cli построчный интерфейс участника сессии ревью.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/client/session"
	"github.com/iudanet/gophreview/internal/validation"
)

// Passphrases источники парольной фразы сессии
type Passphrases struct {
	FromFile string
	FromArgs string
	Prompt   bool // спросить интерактивно, если другие источники пусты
}

// ReadPassphrase возвращает парольную фразу по приоритету:
// 1. файл FromFile
// 2. значение FromArgs (флаг, переменная окружения или файл конфигурации)
// 3. интерактивный ввод, если Prompt
// Пустая строка без ошибки означает, что фраза не задана.
func ReadPassphrase(console iocli.IO, p Passphrases) (string, error) {
	if p.FromFile != "" {
		content, err := os.ReadFile(p.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		passphrase := strings.TrimSpace(string(content))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file is empty")
		}
		return passphrase, nil
	}

	if p.FromArgs != "" {
		return p.FromArgs, nil
	}

	if !p.Prompt {
		return "", nil
	}
	passphrase, err := console.ReadPassword("Session passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if err := validation.ValidatePassphrase(passphrase); err != nil {
		return "", err
	}
	return passphrase, nil
}

// Cli читает команды участника и печатает события сессии
type Cli struct {
	session *session.Session
	console iocli.IO
}

// New создает интерфейс поверх подключаемой сессии
func New(s *session.Session, console iocli.IO) *Cli {
	return &Cli{session: s, console: console}
}

// Run подключается к сессии и обрабатывает команды до quit, конца ввода,
// отмены ctx или окончательного закрытия сессии
func (c *Cli) Run(ctx context.Context) error {
	ended := make(chan error, 1)
	unsubscribe := c.session.Subscribe(func(ev session.Event) {
		if line := formatEvent(ev); line != "" {
			c.console.Println(line)
		}
		switch ev.Type {
		case session.EventSessionEnded:
			signal(ended, nil)
		case session.EventReconnectFailed:
			signal(ended, ev.Err)
		case session.EventError:
			var closeErr *session.CloseError
			if errors.As(ev.Err, &closeErr) {
				signal(ended, ev.Err)
			}
		}
	})
	defer unsubscribe()

	if err := c.session.Connect(ctx); err != nil {
		return fmt.Errorf("failed to join session: %w", err)
	}
	defer func() {
		if err := c.session.Disconnect(context.WithoutCancel(ctx)); err != nil {
			c.console.Printf("Failed to save replica: %v\n", err)
		}
	}()

	c.console.Println("Type 'help' for commands.")

	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go c.readLines(stop, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-ended:
			return err
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		case line := <-lines:
			quit, err := c.Execute(ctx, line)
			if err != nil {
				c.console.Printf("Error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// readLines читает ввод до ошибки или stop. Заблокированное чтение
// завершится только с концом ввода.
func (c *Cli) readLines(stop <-chan struct{}, lines chan<- string, readErr chan<- error) {
	for {
		line, err := c.console.ReadInput("")
		if err != nil {
			readErr <- err
			return
		}
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-stop:
			return
		}
	}
}

func signal(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}
