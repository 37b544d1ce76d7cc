package ops

import (
	"context"
	"database/sql"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/mailer"
)

// fakeSender records every message and fails recipients listed in errs.
type fakeSender struct {
	sent []*mailer.Email
	errs map[string]error
}

func (f *fakeSender) Send(_ context.Context, email *mailer.Email) error {
	if err := f.errs[email.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, email)
	return nil
}

// fixture is a working directory with a font, a template and a body.
type fixture struct {
	dir      string
	font     string
	template string
	body     string
	cfg      *config.Config
	db       *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		dir:      dir,
		font:     filepath.Join(dir, "GoRegular.ttf"),
		template: filepath.Join(dir, "template.png"),
		body:     filepath.Join(dir, "body.html"),
	}
	require.NoError(t, os.WriteFile(f.font, goregular.TTF, 0644))
	require.NoError(t, imaging.Save(imaging.New(400, 200, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), f.template))
	require.NoError(t, os.WriteFile(f.body, []byte("<p>Dear {{name}}, your certificate is attached.</p>\n"), 0644))

	database, err := db.Init(filepath.Join(dir, "home"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	f.db = database

	cfg := config.DefaultConfig()
	cfg.Style.FontPath = f.font
	cfg.Style.FontSize = 24
	cfg.Paths.Template = f.template
	cfg.Paths.Body = f.body
	cfg.Output.Dir = filepath.Join(dir, "Certs")
	cfg.Mail.From = "office@example.org"
	f.cfg = cfg
	return f
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *fixture) home() string {
	return filepath.Join(f.dir, "home")
}

func TestNewID_TimeOrdered(t *testing.T) {
	a, err := newID(time.UnixMilli(1000))
	require.NoError(t, err)
	b, err := newID(time.UnixMilli(2000))
	require.NoError(t, err)

	if len(a) != 26 {
		t.Errorf("len(id) = %d, want 26", len(a))
	}
	if strings.Compare(a, b) >= 0 {
		t.Errorf("ids not ordered: %q >= %q", a, b)
	}
}

func TestPick(t *testing.T) {
	tests := []struct {
		values []string
		want   string
	}{
		{[]string{"a", "b"}, "a"},
		{[]string{"", "b"}, "b"},
		{[]string{"  ", " b "}, "b"},
		{[]string{"", ""}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := pick(tt.values...); got != tt.want {
			t.Errorf("pick(%q) = %q, want %q", tt.values, got, tt.want)
		}
	}
}
