package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/resend/resend-go/v3"

	"github.com/hpungsan/certmail/internal/errors"
)

// ResendConfig holds Resend API parameters.
type ResendConfig struct {
	APIKey   string
	From     string
	FromName string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Resend sends mail through the Resend HTTP API.
type Resend struct {
	client *resend.Client
	from   string
}

// NewResend validates cfg and returns a sender.
func NewResend(cfg ResendConfig) (*Resend, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewInvalidConfig("resend api key is empty; set CERTMAIL_RESEND_API_KEY")
	}
	if cfg.From == "" {
		return nil, errors.NewInvalidConfig("sender address is required")
	}

	httpClient := &http.Client{Transport: statusTransport{base: http.DefaultTransport}}
	client := resend.NewCustomClient(httpClient, cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, errors.NewInvalidConfig(fmt.Sprintf("invalid resend base url: %v", err))
		}
		client.BaseURL = u
	}

	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &Resend{client: client, from: from}, nil
}

// Send implements Sender.
func (s *Resend) Send(ctx context.Context, email *Email) error {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}
	for _, a := range email.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}

	var status int
	_, err := s.client.Emails.SendWithContext(context.WithValue(ctx, statusKey{}, &status), req)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.NewAuthentication(err)
	case status == 0:
		return errors.NewNetwork(err)
	}
	return errors.NewDeliveryFailed(email.To, err)
}

type statusKey struct{}

// statusTransport stores the response status in the *int carried by the
// request context, so API errors can be told apart by code.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if p, ok := req.Context().Value(statusKey{}).(*int); ok {
			*p = resp.StatusCode
		}
	}
	return resp, err
}
