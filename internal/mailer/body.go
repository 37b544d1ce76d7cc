package mailer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hpungsan/certmail/internal/errors"
)

// Placeholder is replaced with the recipient's name.
const Placeholder = "{{name}}"

// Body is a validated HTML message body.
type Body struct {
	Path string
	HTML string
}

// LoadBody reads an HTML body, or a Markdown body when path ends in .md.
func LoadBody(path string) (*Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInvalidBody(path, err.Error())
	}
	return ParseBody(path, data)
}

// ParseBody validates a body; path decides the format and labels errors.
func ParseBody(path string, data []byte) (*Body, error) {
	lines := nonBlankLines(string(data))
	if len(lines) == 0 {
		return nil, errors.NewInvalidBody(path, "file is empty; write the message body before sending")
	}
	if allCommented(lines) {
		return nil, errors.NewInvalidBody(path, "every line is commented out; enter HTML content and check how it renders")
	}
	if strings.HasPrefix(lines[0], "<!--") && strings.HasSuffix(lines[len(lines)-1], "-->") {
		return nil, errors.NewInvalidBody(path, "the content is wrapped in a comment; remove <!-- and --> around it")
	}

	if strings.EqualFold(filepath.Ext(path), ".md") {
		md := goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
		var buf bytes.Buffer
		if err := md.Convert(data, &buf); err != nil {
			return nil, errors.NewInvalidBody(path, err.Error())
		}
		return &Body{Path: path, HTML: buf.String()}, nil
	}
	return &Body{Path: path, HTML: string(data)}, nil
}

// Personalize returns the body with every placeholder replaced by name.
func (b *Body) Personalize(name string) string {
	return strings.ReplaceAll(b.HTML, Placeholder, name)
}

func nonBlankLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func allCommented(lines []string) bool {
	for _, l := range lines {
		if !strings.HasPrefix(l, "<!--") || !strings.HasSuffix(l, "-->") {
			return false
		}
	}
	return true
}
