package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/ops"
)

// testEnv is a scratch directory with a font, a template and a ledger.
type testEnv struct {
	dir  string
	home string
	cfg  *config.Config
}

func setupEnv(t *testing.T) (*testEnv, func(args ...string) (string, error)) {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")

	database, err := db.Init(home)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	font := filepath.Join(dir, "GoRegular.ttf")
	require.NoError(t, os.WriteFile(font, goregular.TTF, 0644))
	template := filepath.Join(dir, "template.png")
	require.NoError(t, imaging.Save(imaging.New(300, 150, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), template))

	cfg := config.DefaultConfig()
	cfg.Style.FontPath = font
	cfg.Style.FontSize = 20
	cfg.Paths.Template = template
	cfg.Output.Dir = filepath.Join(dir, "Certs")
	cfg.Output.Format = "png"
	cfg.Mail.From = "office@example.org"

	env := &testEnv{dir: dir, home: home, cfg: cfg}
	run := func(args ...string) (string, error) {
		app := newCLIApp(database, env.cfg, home)

		// Capture stdout
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := app.Run(append([]string{"certmail"}, args...))

		w.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		os.Stdout = oldStdout
		return buf.String(), err
	}
	return env, run
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestCLINames tests the names command.
func TestCLINames(t *testing.T) {
	env, run := setupEnv(t)
	wordlist := env.write(t, "wordlist.txt", "bob ng\n alice lee \n")

	out, err := run("names", "--write", wordlist)
	if err != nil {
		t.Fatalf("names command failed: %v", err)
	}

	var result ops.NamesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, []string{"Alice Lee", "Bob Ng"}, result.Names)
	require.True(t, result.Rewritten)

	data, err := os.ReadFile(wordlist)
	require.NoError(t, err)
	require.Equal(t, "Alice Lee\nBob Ng\n", string(data))
}

// TestCLIRender tests the render command writes one file per name.
func TestCLIRender(t *testing.T) {
	env, run := setupEnv(t)
	wordlist := env.write(t, "wordlist.txt", "Alice Lee\nBob Ng\n")

	out, err := run("render", wordlist)
	if err != nil {
		t.Fatalf("render command failed: %v", err)
	}

	var result ops.CertifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, 2, result.Count)
	require.Equal(t, "png", result.Format)
	for _, f := range result.Files {
		if _, err := os.Stat(filepath.Join(result.Dir, f)); err != nil {
			t.Errorf("missing certificate %s: %v", f, err)
		}
	}

	// A second batch goes next to the first one.
	out, err = run("render", "--format=pdf", wordlist)
	require.NoError(t, err)
	var second ops.CertifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.Equal(t, env.cfg.Output.Dir+"(1)", second.Dir)
	require.Equal(t, "pdf", second.Format)
}

// TestCLICheck tests check against the last rendered batch.
func TestCLICheck(t *testing.T) {
	env, run := setupEnv(t)
	wordlist := env.write(t, "wordlist.txt", "Alice Lee\n")
	body := env.write(t, "body.html", "<p>Dear {{name}}</p>")
	recipients := env.write(t, "tosend.csv", "Full Name,Email\nAlice Lee,alice@x.org\n")

	_, err := run("render", wordlist)
	require.NoError(t, err)

	out, err := run("check", "--body", body, recipients)
	if err != nil {
		t.Fatalf("check command failed: %v", err)
	}
	var result ops.CheckOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, "other", result.Mode)
	require.Equal(t, 1, result.Sendable)
	require.Equal(t, env.cfg.Output.Dir, result.CertificatesDir)
	require.NotEmpty(t, result.BatchID)
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	env, run := setupEnv(t)
	body := env.write(t, "body.html", "<p>Dear {{name}}</p>")
	recipients := env.write(t, "tosend.csv", "Full Name,Email\nAlice Lee,a@x.org\nAl Lee,a@x.org\n")

	t.Run("missing wordlist", func(t *testing.T) {
		_, err := run("names", filepath.Join(env.dir, "nope.txt"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "[NOT_FOUND]")
	})

	t.Run("duplicate emails", func(t *testing.T) {
		_, err := run("check", "--mode=none", "--body", body, recipients)
		require.Error(t, err)
		require.Contains(t, err.Error(), "[DUPLICATE_EMAIL]")
	})

	t.Run("allow duplicates flag", func(t *testing.T) {
		_, err := run("check", "--mode=none", "--allow-duplicates", "--body", body, recipients)
		require.NoError(t, err)
		require.Nil(t, env.cfg.Mail.AllowDuplicates, "flag must not leak into the shared config")
	})

	t.Run("resend without api key", func(t *testing.T) {
		_, err := run("send", "--mode=none", "--allow-duplicates", "--transport=resend",
			"--subject=Your certificate", "--body", body, recipients)
		require.Error(t, err)
		require.Contains(t, err.Error(), "[INVALID_CONFIG]")
	})

	t.Run("status without run id", func(t *testing.T) {
		_, err := run("history", "--status=sent")
		require.Error(t, err)
		require.Contains(t, err.Error(), "[INVALID_REQUEST]")
	})
}

// TestCLIExtract tests extract writes the recipients and the wordlist.
func TestCLIExtract(t *testing.T) {
	env, run := setupEnv(t)
	sheet := env.write(t, "attendance.csv", "Full Name,Email,Attendance\nAlice Lee,a@x.org,TRUE\nBob Ng,b@x.org,FALSE\n")
	outDir := filepath.Join(env.dir, "work")
	require.NoError(t, os.MkdirAll(outDir, 0755))

	out, err := run("extract", "--out", outDir, sheet)
	if err != nil {
		t.Fatalf("extract command failed: %v", err)
	}
	var result ops.ExtractOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, 1, result.Count)

	data, err := os.ReadFile(result.WordlistPath)
	require.NoError(t, err)
	require.Equal(t, "Alice Lee\n", string(data))
}

// TestCLIHistory tests the history command on an empty ledger.
func TestCLIHistory(t *testing.T) {
	_, run := setupEnv(t)

	out, err := run("history", "--limit=5")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	var result ops.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Empty(t, result.Runs)
	require.NotNil(t, result.Pagination)
	require.Equal(t, 5, result.Pagination.Limit)
	require.Equal(t, 0, result.Pagination.Total)
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"certmail"}, expected: false},
		{name: "render command", args: []string{"certmail", "render"}, expected: true},
		{name: "send command", args: []string{"certmail", "send"}, expected: true},
		{name: "home before command", args: []string{"certmail", "--home", "/tmp/x", "history"}, expected: true},
		{name: "home only", args: []string{"certmail", "--home=/tmp/x"}, expected: false},
		{name: "help flag", args: []string{"certmail", "--help"}, expected: true},
		{name: "version flag", args: []string{"certmail", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"certmail", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"certmail"}, expected: false},
		{name: "help flag", args: []string{"certmail", "--help"}, expected: true},
		{name: "short help flag", args: []string{"certmail", "-h"}, expected: true},
		{name: "version flag", args: []string{"certmail", "--version"}, expected: true},
		{name: "help subcommand", args: []string{"certmail", "help"}, expected: true},
		{name: "render command is not help", args: []string{"certmail", "render"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestHomeFromArgs(t *testing.T) {
	t.Setenv(EnvHome, "/env/home")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"certmail", "--home", "/flag/home", "render"}, "/flag/home"},
		{[]string{"certmail", "--home=/eq/home", "render"}, "/eq/home"},
		{[]string{"certmail", "render", "--home", "/ignored"}, "/env/home"},
		{[]string{"certmail"}, "/env/home"},
	}
	for _, tt := range tests {
		got, err := homeFromArgs(tt.args)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("homeFromArgs(%s) = %q, want %q", strings.Join(tt.args[1:], " "), got, tt.want)
		}
	}

	_, err := homeFromArgs([]string{"certmail", "--home"})
	require.Error(t, err)

	t.Setenv(EnvHome, "")
	got, err := homeFromArgs([]string{"certmail"})
	require.NoError(t, err)
	require.Equal(t, ".certmail", filepath.Base(got))
}

func TestFirstCommand(t *testing.T) {
	require.Equal(t, "send", firstCommand([]string{"certmail", "--home", "/h", "send", "x.csv"}))
	require.Equal(t, "send", firstCommand([]string{"certmail", "--home=/h", "send"}))
	require.Equal(t, "", firstCommand([]string{"certmail", "--home", "/h"}))
	require.Equal(t, "names", firstCommand([]string{"certmail", "names"}))
}
