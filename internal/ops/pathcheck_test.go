package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/certmail/internal/errors"
)

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "template.PNG")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "folder.png")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		code errors.ErrorCode
	}{
		{"ok, extension case-insensitive", file, ""},
		{"empty", "", errors.ErrInvalidRequest},
		{"wrong extension", filepath.Join(dir, "template.gif"), errors.ErrInvalidRequest},
		{"missing", filepath.Join(dir, "nope.png"), errors.ErrNotFound},
		{"directory", sub, errors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInput(tc.path, "template", templateExts)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("ValidateInput failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.code) {
				t.Errorf("ValidateInput() = %v, want %s", err, tc.code)
			}
		})
	}
}

func TestValidateInputs_FirstFailureWins(t *testing.T) {
	err := ValidateInputs(
		InputCheck{Path: "", Label: "template", Exts: templateExts},
		InputCheck{Path: "font.woff", Label: "font", Exts: fontExts},
	)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("ValidateInputs() = %v, want INVALID_REQUEST", err)
	}
	if got := err.Error(); got != "INVALID_REQUEST: template path is required" {
		t.Errorf("Error() = %q", got)
	}
}
