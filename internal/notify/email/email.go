// Package email delivers alert notifications over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Config holds mail server settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

// Notifier sends one plain-text mail per notification.
type Notifier struct {
	cfg  Config
	send sendFunc
}

// New validates cfg and constructs a Notifier.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Notifier{
		cfg:  cfg,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error { return mail.Send(addr, auth) },
	}, nil
}

// Send delivers n. Servers that do not offer AUTH get a second, unauthenticated attempt.
func (e *Notifier) Send(ctx context.Context, n pricing.Notification) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return errors.New("send alert mail: recipient is required")
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Price Tracker <%s>", e.cfg.From)
	mail.To = []string{n.Recipient}
	mail.Subject = n.Subject
	mail.Text = []byte(n.Body)

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	err := e.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send alert mail to %s: %w", n.Recipient, err)
	}
	return nil
}
