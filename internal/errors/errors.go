package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a certmail error code.
type ErrorCode string

const (
	// Setup errors: raised before any per-item work starts.
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrInvalidConfig     ErrorCode = "INVALID_CONFIG"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrEmptyInput        ErrorCode = "EMPTY_INPUT"
	ErrEmptyWordlist     ErrorCode = "EMPTY_WORDLIST"
	ErrFontLoad          ErrorCode = "FONT_LOAD"
	ErrTemplateRead      ErrorCode = "TEMPLATE_READ"
	ErrInvalidTable      ErrorCode = "INVALID_TABLE"
	ErrInvalidBody       ErrorCode = "INVALID_BODY"
	ErrDuplicateEmail    ErrorCode = "DUPLICATE_EMAIL"
	ErrMissingAttachment ErrorCode = "MISSING_ATTACHMENT"

	// Mid-run fatal errors: abort the remaining batch.
	ErrRenderFailed   ErrorCode = "RENDER_FAILED"
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	ErrNetwork        ErrorCode = "NETWORK"
	ErrCancelled      ErrorCode = "CANCELLED"

	// Per-row errors: recorded, the run continues.
	ErrDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	ErrInternal ErrorCode = "INTERNAL"
)

// forbiddenHint is shown whenever a name fails the filesystem character check.
const forbiddenHint = `remove any of the following characters: < > " ? | / \ : *`

// CertmailError represents a structured error with code, message and details.
type CertmailError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *CertmailError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CertmailError) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error must abort the remaining batch.
func (e *CertmailError) Fatal() bool {
	return e.Code != ErrDeliveryFailed
}

// NewInvalidRequest creates an error for invalid operation parameters.
func NewInvalidRequest(msg string) *CertmailError {
	return &CertmailError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewInvalidConfig creates an error for a configuration that failed validation.
func NewInvalidConfig(msg string) *CertmailError {
	return &CertmailError{
		Code:    ErrInvalidConfig,
		Message: msg,
	}
}

// NewNotFound creates an error for a file or record that does not exist.
func NewNotFound(identifier string) *CertmailError {
	return &CertmailError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// LineError describes one offending wordlist line.
type LineError struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// NewValidationFailed creates an error listing every name with forbidden characters.
// Line numbers refer to the sorted order, not the original file order.
func NewValidationFailed(lines []LineError) *CertmailError {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("line %d (%q)", l.Line, l.Text))
	}
	return &CertmailError{
		Code:    ErrValidationFailed,
		Message: fmt.Sprintf("wordlist contains forbidden characters on %s; %s", strings.Join(parts, ", "), forbiddenHint),
		Details: map[string]any{"lines": lines},
	}
}

// NewEmptyInput creates an error for a wordlist with no names after trimming.
func NewEmptyInput() *CertmailError {
	return &CertmailError{
		Code:    ErrEmptyInput,
		Message: "wordlist is empty; add one name per line",
	}
}

// NewEmptyWordlist creates an error for a batch started with no names.
func NewEmptyWordlist() *CertmailError {
	return &CertmailError{
		Code:    ErrEmptyWordlist,
		Message: "no names to render",
	}
}

// NewFontLoad creates an error for a font that cannot be read or parsed.
func NewFontLoad(path string, cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrFontLoad,
		Message: fmt.Sprintf("cannot load font %s: %v; provide a valid TrueType/OpenType file", path, cause),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// NewTemplateRead creates an error for a template image that cannot be decoded.
func NewTemplateRead(path string, cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrTemplateRead,
		Message: fmt.Sprintf("cannot read template %s: %v; provide a single PNG or JPEG image", path, cause),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// NewInvalidTable creates an error for a recipient table that cannot be used.
func NewInvalidTable(path, msg string) *CertmailError {
	return &CertmailError{
		Code:    ErrInvalidTable,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewMissingColumns creates an INVALID_TABLE error naming the absent columns.
func NewMissingColumns(path string, columns []string) *CertmailError {
	return &CertmailError{
		Code:    ErrInvalidTable,
		Message: fmt.Sprintf("%s: missing required columns: %s", path, strings.Join(columns, ", ")),
		Details: map[string]any{"path": path, "missing_columns": columns},
	}
}

// NewInvalidBody creates an error for an unusable email body template.
func NewInvalidBody(path, msg string) *CertmailError {
	return &CertmailError{
		Code:    ErrInvalidBody,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// Duplicate describes one email address used by more than one row.
type Duplicate struct {
	Email     string `json:"email"`
	Rows      []int  `json:"rows"`
	SameNames bool   `json:"same_names"`
}

// NewDuplicateEmail creates an error listing every duplicated email address.
func NewDuplicateEmail(dups []Duplicate) *CertmailError {
	parts := make([]string, 0, len(dups))
	for _, d := range dups {
		kind := "different"
		if d.SameNames {
			kind = "same"
		}
		parts = append(parts, fmt.Sprintf("%q in rows %v with %s names", d.Email, d.Rows, kind))
	}
	return &CertmailError{
		Code:    ErrDuplicateEmail,
		Message: fmt.Sprintf("duplicate emails: %s; fix the table or enable allow_duplicates", strings.Join(parts, "; ")),
		Details: map[string]any{"duplicates": dups},
	}
}

// Missing describes one attachment that does not exist on disk.
type Missing struct {
	Row  int    `json:"row"`
	Line int    `json:"line"`
	File string `json:"file"`
	// Reason is set when the file was refused rather than not found.
	Reason string `json:"reason,omitempty"`
}

// NewMissingAttachment creates a consolidated error for every missing attachment.
func NewMissingAttachment(missing []Missing) *CertmailError {
	parts := make([]string, 0, len(missing))
	for _, m := range missing {
		part := fmt.Sprintf("row %d (line %d): %s", m.Row, m.Line, m.File)
		if m.Reason != "" {
			part += " (" + m.Reason + ")"
		}
		parts = append(parts, part)
	}
	return &CertmailError{
		Code:    ErrMissingAttachment,
		Message: fmt.Sprintf("attachments not found: %s", strings.Join(parts, "; ")),
		Details: map[string]any{"missing": missing},
	}
}

// NewCommonAttachmentMissing creates an error for an unusable first-row attachment in common mode.
func NewCommonAttachmentMissing(msg string) *CertmailError {
	return &CertmailError{
		Code:    ErrMissingAttachment,
		Message: fmt.Sprintf("common attachment of first row: %s", msg),
	}
}

// NewRenderFailed creates an error for a certificate that could not be written.
func NewRenderFailed(name string, cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrRenderFailed,
		Message: fmt.Sprintf("rendering %q failed: %v", name, cause),
		Details: map[string]any{"name": name},
		Cause:   cause,
	}
}

// NewAuthentication creates an error for credentials rejected by the transport.
func NewAuthentication(cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrAuthentication,
		Message: fmt.Sprintf("mail transport rejected the credentials: %v; check the sender address and password", cause),
		Cause:   cause,
	}
}

// NewNetwork creates an error for an unreachable transport.
func NewNetwork(cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrNetwork,
		Message: fmt.Sprintf("mail transport unreachable: %v; check the host, port and network connection", cause),
		Cause:   cause,
	}
}

// NewCancelled creates an error for an interrupted operation.
func NewCancelled(operation string) *CertmailError {
	return &CertmailError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewDeliveryFailed creates a per-row error for a message the transport refused.
func NewDeliveryFailed(recipient string, cause error) *CertmailError {
	return &CertmailError{
		Code:    ErrDeliveryFailed,
		Message: fmt.Sprintf("failed to send to %s: %v", recipient, cause),
		Details: map[string]any{"recipient": recipient},
		Cause:   cause,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *CertmailError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CertmailError{
		Code:    ErrInternal,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if err, or any error it wraps, is a CertmailError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CertmailError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first CertmailError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var cErr *CertmailError
	if stderrors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrInternal
}
