package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/errors"
)

// Accepted extensions per input kind.
var (
	templateExts = []string{".png", ".jpg", ".jpeg"}
	fontExts     = []string{".ttf", ".otf"}
	tableExts    = []string{".csv"}
	bodyExts     = []string{".html", ".htm", ".md"}
	wordlistExts = []string{".txt"}
)

// ValidateInput checks that path names an existing regular file with one of
// the given extensions. label names the input in error messages.
func ValidateInput(path, label string, exts []string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest(fmt.Sprintf("%s path is required", label))
	}

	cleaned := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleaned))
	if len(exts) > 0 && !lo.Contains(exts, ext) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s must have one of the extensions %s (got %q)", label, strings.Join(exts, ", "), filepath.Base(cleaned)))
	}

	info, err := os.Stat(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(path)
		}
		return errors.NewInternal(fmt.Errorf("stat %s: %w", path, err))
	}
	if info.IsDir() {
		return errors.NewInvalidRequest(fmt.Sprintf("%s %s is a directory; pass a file", label, path))
	}
	return nil
}

// ValidateInputs runs ValidateInput for each check and returns the first error.
func ValidateInputs(checks ...InputCheck) error {
	for _, c := range checks {
		if err := ValidateInput(c.Path, c.Label, c.Exts); err != nil {
			return err
		}
	}
	return nil
}

// InputCheck is one ValidateInput call.
type InputCheck struct {
	Path  string
	Label string
	Exts  []string
}
