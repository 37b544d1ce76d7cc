// Package mailer builds outbound messages and hands them to a transport.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/hpungsan/certmail/internal/errors"
)

// Sender delivers one prepared message. Implementations return coded errors:
// AUTHENTICATION and NETWORK mean the transport is unusable, DELIVERY_FAILED
// means only this message was refused.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// Email is a fully prepared message.
type Email struct {
	To          string
	ToName      string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is a file read into memory.
type Attachment struct {
	Filename    string
	Path        string
	ContentType string
	Content     []byte
}

// LoadAttachments reads every path. A path that no longer exists yields a
// MISSING_ATTACHMENT error naming it.
func LoadAttachments(paths []string) ([]Attachment, error) {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewMissingAttachment([]errors.Missing{{File: p}})
			}
			return nil, errors.NewInternal(fmt.Errorf("read attachment %s: %w", p, err))
		}
		out = append(out, Attachment{
			Filename:    filepath.Base(p),
			Path:        p,
			ContentType: contentType(p),
			Content:     data,
		})
	}
	return out, nil
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
