package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/certmail/internal/errors"
)

func newResendServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResend_Send(t *testing.T) {
	var got map[string]any
	srv := newResendServer(t, http.StatusOK, `{"id":"email_1"}`, &got)

	s, err := NewResend(ResendConfig{APIKey: "re_test", From: "certs@example.org", FromName: "Certificates", BaseURL: srv.URL})
	require.NoError(t, err)

	err = s.Send(context.Background(), &Email{
		To:          "alice@example.org",
		Subject:     "Your certificate",
		HTML:        "<p>Hello Alice Lee</p>",
		Attachments: []Attachment{{Filename: "Alice_Lee_certificate.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})
	require.NoError(t, err)
	require.Equal(t, "Certificates <certs@example.org>", got["from"])
	require.Equal(t, "Your certificate", got["subject"])
	require.Len(t, got["attachments"], 1)
}

func TestResend_ErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrAuthentication},
		{"forbidden", http.StatusForbidden, errors.ErrAuthentication},
		{"bad request", http.StatusUnprocessableEntity, errors.ErrDeliveryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newResendServer(t, tt.status, `{"statusCode":`+strconv.Itoa(tt.status)+`,"message":"rejected","name":"error"}`, nil)
			s, err := NewResend(ResendConfig{APIKey: "re_test", From: "certs@example.org", BaseURL: srv.URL})
			require.NoError(t, err)

			err = s.Send(context.Background(), &Email{To: "a@example.org", Subject: "x", HTML: "<p>x</p>"})
			require.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestResend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewResend(ResendConfig{APIKey: "re_test", From: "certs@example.org", BaseURL: url})
	require.NoError(t, err)

	err = s.Send(context.Background(), &Email{To: "a@example.org", Subject: "x", HTML: "<p>x</p>"})
	require.True(t, errors.Is(err, errors.ErrNetwork), "got %v", err)
}

func TestNewResend_RequiresKey(t *testing.T) {
	_, err := NewResend(ResendConfig{From: "certs@example.org"})
	require.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
