// Package names turns raw wordlist lines into sorted, title-cased recipient
// names and derives the filesystem slug shared by the renderer and the mailer.
package names

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hpungsan/certmail/internal/errors"
)

// ForbiddenChars lists characters that are illegal in file names on common filesystems.
const ForbiddenChars = `<>"?|/\:*`

// CertificateSuffix is appended to a slug to build the artifact file name.
const CertificateSuffix = "_certificate"

// Title trims s and title-cases every word.
// A letter after an apostrophe stays lower case: "o'brien" becomes
// "O'brien", so certificate file names differ from a per-letter title case
// that would give "O'Brien".
// A Caser is stateful, so one is created per call.
func Title(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// Upper trims s and upper-cases it.
func Upper(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// Slug joins the whitespace-separated tokens of name with underscores.
// "Jane   Doe" becomes "Jane_Doe".
func Slug(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// CertificateFile returns the deterministic artifact file name for name.
func CertificateFile(name, ext string) string {
	return fmt.Sprintf("%s%s.%s", Slug(name), CertificateSuffix, strings.TrimPrefix(ext, "."))
}

// HasForbidden reports whether s contains any of ForbiddenChars.
func HasForbidden(s string) bool {
	return strings.ContainsAny(s, ForbiddenChars)
}

// Normalize trims and title-cases lines, drops blank ones and sorts the rest.
// Duplicates are preserved. Forbidden characters are checked after sorting,
// so reported line numbers refer to the sorted output, not the input.
func Normalize(lines []string) ([]string, error) {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, Title(line))
	}
	sort.Strings(out)

	var bad []errors.LineError
	for i, name := range out {
		if HasForbidden(name) {
			bad = append(bad, errors.LineError{Line: i + 1, Text: name})
		}
	}
	if len(bad) > 0 {
		return nil, errors.NewValidationFailed(bad)
	}

	if len(out) == 0 {
		return nil, errors.NewEmptyInput()
	}
	return out, nil
}

// ReadFile reads newline-delimited lines from path.
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to read wordlist: %w", err))
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read wordlist: %w", err))
	}
	return lines, nil
}

// WriteFile writes names to path, one per line.
func WriteFile(path string, names []string) error {
	data := strings.Join(names, "\n")
	if len(names) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to write wordlist: %w", err))
	}
	return nil
}
