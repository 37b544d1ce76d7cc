package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestCertmailError_Error(t *testing.T) {
	err := &CertmailError{
		Code:    ErrNotFound,
		Message: "not found: wordlist.txt",
	}

	expected := "NOT_FOUND: not found: wordlist.txt"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidationFailed_ListsEveryLine(t *testing.T) {
	err := NewValidationFailed([]LineError{
		{Line: 2, Text: "Bob/Smith"},
		{Line: 5, Text: "Eve:Adams"},
	})

	if err.Code != ErrValidationFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidationFailed)
	}
	for _, want := range []string{"line 2", "line 5", "Bob/Smith", "Eve:Adams", forbiddenHint} {
		if !strings.Contains(err.Message, want) {
			t.Errorf("Message = %q, missing %q", err.Message, want)
		}
	}
	lines, ok := err.Details["lines"].([]LineError)
	if !ok || len(lines) != 2 {
		t.Errorf("Details[lines] = %v, want 2 entries", err.Details["lines"])
	}
}

func TestNewFontLoad_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("bad magic")
	err := NewFontLoad("/fonts/x.ttf", cause)

	if err.Code != ErrFontLoad {
		t.Errorf("Code = %q, want %q", err.Code, ErrFontLoad)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Details["path"] != "/fonts/x.ttf" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/fonts/x.ttf")
	}
}

func TestNewMissingColumns(t *testing.T) {
	err := NewMissingColumns("recipients.csv", []string{"Email", "Attachments"})

	if err.Code != ErrInvalidTable {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidTable)
	}
	if !strings.Contains(err.Message, "Email, Attachments") {
		t.Errorf("Message = %q, want column names", err.Message)
	}
}

func TestNewDuplicateEmail(t *testing.T) {
	err := NewDuplicateEmail([]Duplicate{
		{Email: "a@x.org", Rows: []int{1, 3}, SameNames: true},
		{Email: "b@x.org", Rows: []int{2, 4}, SameNames: false},
	})

	if err.Code != ErrDuplicateEmail {
		t.Errorf("Code = %q, want %q", err.Code, ErrDuplicateEmail)
	}
	if !strings.Contains(err.Message, "same names") || !strings.Contains(err.Message, "different names") {
		t.Errorf("Message = %q, want same/different markers", err.Message)
	}
}

func TestNewMissingAttachment(t *testing.T) {
	err := NewMissingAttachment([]Missing{
		{Row: 3, Line: 4, File: "Carol_X_certificate.pdf"},
	})

	if err.Code != ErrMissingAttachment {
		t.Errorf("Code = %q, want %q", err.Code, ErrMissingAttachment)
	}
	if !strings.Contains(err.Message, "row 3 (line 4): Carol_X_certificate.pdf") {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestFatal(t *testing.T) {
	tests := []struct {
		err   *CertmailError
		fatal bool
	}{
		{NewAuthentication(fmt.Errorf("535")), true},
		{NewNetwork(fmt.Errorf("dial")), true},
		{NewRenderFailed("Bob", fmt.Errorf("disk full")), true},
		{NewDeliveryFailed("a@x.org", fmt.Errorf("550")), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if tt.err.Fatal() != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", tt.err.Fatal(), tt.fatal)
			}
		})
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInvalidRequest, false},
		{"wrapped", fmt.Errorf("send: %w", NewAuthentication(fmt.Errorf("535"))), ErrAuthentication, true},
		{"non-certmail error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil error", nil, ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewEmptyWordlist()); got != ErrEmptyWordlist {
		t.Errorf("CodeOf() = %q, want %q", got, ErrEmptyWordlist)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != ErrInternal {
		t.Errorf("CodeOf() = %q, want %q", got, ErrInternal)
	}
}
