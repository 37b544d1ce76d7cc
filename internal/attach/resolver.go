// Package attach maps recipient rows to the files that must be attached to
// their message.
package attach

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/names"
	"github.com/hpungsan/certmail/internal/table"
)

// Mode selects how attachments are located. It is fixed for a run.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeCommon     Mode = "common"
	ModeRespective Mode = "respective"
	ModeOther      Mode = "other"
)

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeNone, ModeCommon, ModeRespective, ModeOther:
		return m, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("attachment mode must be one of: none, common, respective, other (got %q)", s))
}

// NeedsColumn reports whether the mode reads the Attachments column.
func (m Mode) NeedsColumn() bool {
	return m == ModeCommon || m == ModeRespective
}

// Separator splits entries of the Attachments column.
const Separator = ";"

// Reasons for refusing an attachment before looking at the disk.
const (
	ReasonForbiddenName = "name contains a forbidden character"
	ReasonOutsideDir    = "resolves outside the attachments directory"
)

// Options holds the directories a Resolver looks in.
type Options struct {
	// AttachmentsDir is the base for common and respective entries.
	AttachmentsDir string
	// CertificatesDir is the batch output directory used in other mode.
	CertificatesDir string
	// Format is the certificate extension used in other mode.
	Format string
}

// Resolver computes attachment paths for rows. Build one per run.
type Resolver struct {
	mode   Mode
	opts   Options
	common []string
}

// NewResolver validates opts for mode. In common mode the first data row's
// Attachments field is read once; an empty field or entry is fatal.
func NewResolver(mode Mode, opts Options, rows []table.Row) (*Resolver, error) {
	r := &Resolver{mode: mode, opts: opts}
	switch mode {
	case ModeNone:
	case ModeRespective:
	case ModeCommon:
		if len(rows) == 0 {
			return nil, errors.NewCommonAttachmentMissing("the table has no data rows")
		}
		field := strings.TrimSpace(rows[0].Attachments)
		if field == "" {
			return nil, errors.NewCommonAttachmentMissing(fmt.Sprintf("row 1 (line %d) has an empty Attachments field", rows[0].Line))
		}
		for _, part := range strings.Split(field, Separator) {
			part = strings.TrimSpace(part)
			if part == "" {
				return nil, errors.NewCommonAttachmentMissing(fmt.Sprintf("row 1 (line %d) has an empty entry in %q", rows[0].Line, field))
			}
			path := filepath.Join(opts.AttachmentsDir, part)
			if !within(opts.AttachmentsDir, path) {
				return nil, errors.NewCommonAttachmentMissing(fmt.Sprintf("row 1 (line %d): %s %s", rows[0].Line, part, ReasonOutsideDir))
			}
			r.common = append(r.common, path)
		}
	case ModeOther:
		if opts.CertificatesDir == "" {
			return nil, errors.NewInvalidRequest("certificates directory is required in other mode")
		}
		if opts.Format == "" {
			return nil, errors.NewInvalidRequest("certificate format is required in other mode")
		}
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown attachment mode %q", mode))
	}
	return r, nil
}

// Mode returns the resolver's mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Paths returns the expected attachment paths for row without touching disk.
func (r *Resolver) Paths(row table.Row) []string {
	switch r.mode {
	case ModeCommon:
		return append([]string(nil), r.common...)
	case ModeRespective:
		var out []string
		for _, part := range strings.Split(row.Attachments, Separator) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, filepath.Join(r.opts.AttachmentsDir, part))
			}
		}
		return out
	case ModeOther:
		file := names.CertificateFile(names.Title(row.FullName), r.opts.Format)
		return []string{filepath.Join(r.opts.CertificatesDir, file)}
	default:
		return nil
	}
}

// Resolve returns row's attachment paths and the ones that cannot be sent.
// Refused paths carry a Reason; the rest are simply not on disk.
func (r *Resolver) Resolve(row table.Row) ([]string, []errors.Missing) {
	paths := r.Paths(row)
	if r.mode == ModeOther && names.HasForbidden(row.FullName) {
		return nil, []errors.Missing{{Row: row.Row, Line: row.Line, File: paths[0], Reason: ReasonForbiddenName}}
	}
	var missing []errors.Missing
	for _, p := range paths {
		m := errors.Missing{Row: row.Row, Line: row.Line, File: p}
		switch {
		case r.mode == ModeRespective && !within(r.opts.AttachmentsDir, p):
			m.Reason = ReasonOutsideDir
		case isFile(p):
			continue
		}
		missing = append(missing, m)
	}
	return paths, missing
}

// within reports whether path stays inside dir once cleaned.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
