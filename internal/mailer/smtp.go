package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"github.com/hpungsan/certmail/internal/errors"
)

// TLS policies accepted by SMTPConfig.TLS.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      string
	Timeout  time.Duration
	// Retries bounds the attempts after a temporary (4xx) failure.
	Retries   uint64
	RetryBase time.Duration
}

// SMTP sends mail through an SMTP relay, one connection per message.
type SMTP struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTP validates cfg and returns a sender.
func NewSMTP(cfg SMTPConfig, logger *slog.Logger) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.NewInvalidConfig("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.NewInvalidConfig("sender address is required")
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSMandatory
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Second
	}
	if IsGmail(cfg.Host) && cfg.Username != "" {
		if err := CheckGmailAppPassword(cfg.Password); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SMTP{cfg: cfg, logger: logger}, nil
}

// Send delivers email, retrying temporary failures with a capped backoff.
func (s *SMTP) Send(ctx context.Context, email *Email) error {
	msg, err := s.message(email)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return errors.NewInvalidConfig(fmt.Sprintf("smtp client: %v", err))
	}

	b := retry.NewFibonacci(s.cfg.RetryBase)
	b = retry.WithCappedDuration(10*time.Second, b)
	b = retry.WithMaxRetries(s.cfg.Retries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := client.DialAndSendWithContext(ctx, msg)
		if err == nil {
			return nil
		}
		coded, temporary := Classify(err, email.To)
		if temporary {
			s.logger.WarnContext(ctx, "temporary smtp failure", "to", email.To, "attempt", attempt, "error", err)
			return retry.RetryableError(coded)
		}
		return coded
	})
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	switch s.cfg.TLS {
	case TLSNone:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSOpportunistic:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	return opts
}

func (s *SMTP) message(email *Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("invalid sender %q: %v", s.cfg.From, err))
	}
	if err := m.AddToFormat(email.ToName, email.To); err != nil {
		return nil, errors.NewDeliveryFailed(email.To, err)
	}
	m.Subject(strings.NewReplacer("\r", "", "\n", "").Replace(email.Subject))
	m.SetBodyString(mail.TypeTextHTML, email.HTML)
	if email.Text != "" {
		m.AddAlternativeString(mail.TypeTextPlain, email.Text)
	}
	for _, a := range email.Attachments {
		err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), mail.WithFileContentType(mail.ContentType(a.ContentType)))
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("attach %s: %w", a.Filename, err))
		}
	}
	return m, nil
}

// IsGmail reports whether host is Google's SMTP relay.
func IsGmail(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	return host == "smtp.gmail.com" || host == "smtp.googlemail.com"
}

// CheckGmailAppPassword checks the shape of a Gmail app password:
// sixteen characters with no spaces.
func CheckGmailAppPassword(password string) error {
	switch {
	case password == "":
		return errors.NewInvalidConfig("smtp password is empty; set CERTMAIL_SMTP_PASSWORD to a Gmail app password")
	case strings.ContainsAny(password, " \t"):
		return errors.NewInvalidConfig("gmail app password must not contain spaces; paste it without the separators")
	case len(password) != 16:
		return errors.NewInvalidConfig(fmt.Sprintf("gmail app password must be 16 characters, got %d", len(password)))
	}
	return nil
}
