package mailer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/certmail/internal/errors"
)

func TestParseBody_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"blank lines", "\n   \n\t\n"},
		{"every line commented", "<!-- <p>a</p> -->\n\n<!-- <p>b</p> -->\n"},
		{"wrapped in comment", "<!-- <html>\n<body>Hello {{name}}</body>\n</html> -->\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBody("body.html", []byte(tt.body))
			require.True(t, errors.Is(err, errors.ErrInvalidBody), "got %v", err)
		})
	}
}

func TestParseBody_HTML(t *testing.T) {
	src := "<html>\n<!-- greeting -->\n<p>Hello {{name}}</p>\n</html>\n"
	b, err := ParseBody("body.html", []byte(src))
	require.NoError(t, err)
	require.Equal(t, src, b.HTML)
}

func TestParseBody_Markdown(t *testing.T) {
	b, err := ParseBody("body.md", []byte("**Hello {{name}}**,\n\n<em>thanks</em>\n"))
	require.NoError(t, err)
	require.Contains(t, b.HTML, "<strong>Hello {{name}}</strong>")
	require.Contains(t, b.HTML, "<em>thanks</em>")
}

func TestBody_Personalize(t *testing.T) {
	b := &Body{HTML: "<p>Dear {{name}},</p><p>{{name}}, see attached.</p>"}

	got := b.Personalize("Alice Lee")
	require.Equal(t, "<p>Dear Alice Lee,</p><p>Alice Lee, see attached.</p>", got)
	require.Contains(t, b.HTML, Placeholder)
}

func TestLoadBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Hi {{name}}</p>"), 0644))

	b, err := LoadBody(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(b.HTML, "<p>Hi"))

	_, err = LoadBody(filepath.Join(dir, "missing.html"))
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoadAttachments(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "Alice_Lee_certificate.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0644))

	atts, err := LoadAttachments([]string{pdf})
	require.NoError(t, err)
	require.Len(t, atts, 1)
	require.Equal(t, "Alice_Lee_certificate.pdf", atts[0].Filename)
	require.Equal(t, "application/pdf", atts[0].ContentType)
	require.Equal(t, []byte("%PDF"), atts[0].Content)

	_, err = LoadAttachments([]string{filepath.Join(dir, "gone.pdf")})
	require.True(t, errors.Is(err, errors.ErrMissingAttachment))
}
