// Package batch drives the renderer over a validated name list into a
// freshly allocated output directory.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/names"
)

// Drawer renders one name to one file. *render.Renderer satisfies it.
type Drawer interface {
	Render(name, dest string) error
}

// ProgressFunc is called after each artifact is written.
type ProgressFunc func(index int, name, file string)

// Options configures a batch.
type Options struct {
	// OutputBase is the preferred directory; base(1), base(2)... are tried next.
	OutputBase string
	// Format is the artifact extension without the dot.
	Format   string
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Result describes a completed batch.
type Result struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Render writes one artifact per name into a new directory.
// The first failure aborts the batch; files already written are left in place.
func Render(ctx context.Context, list []string, d Drawer, opts Options) (*Result, error) {
	if len(list) == 0 {
		return nil, errors.NewEmptyWordlist()
	}
	if opts.Format == "" {
		return nil, errors.NewInvalidRequest("format is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	dir, err := AllocateDir(opts.OutputBase)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "batch started", "dir", dir, "count", len(list), "format", opts.Format)

	res := &Result{Dir: dir, Files: make([]string, 0, len(list))}
	for i, name := range list {
		if err := ctx.Err(); err != nil {
			log.WarnContext(ctx, "batch cancelled", "dir", dir, "written", len(res.Files))
			return res, errors.NewCancelled("certificate generation")
		}

		file := names.CertificateFile(name, opts.Format)
		if err := d.Render(name, filepath.Join(dir, file)); err != nil {
			log.ErrorContext(ctx, "render failed", "name", name, "file", file, "error", err)
			if errors.Is(err, errors.ErrRenderFailed) {
				return res, err
			}
			return res, errors.NewRenderFailed(name, err)
		}

		res.Files = append(res.Files, file)
		log.InfoContext(ctx, "certificate written", "name", name, "file", file)
		if opts.Progress != nil {
			opts.Progress(i+1, name, file)
		}
	}

	log.InfoContext(ctx, "batch finished", "dir", dir, "count", len(res.Files))
	return res, nil
}

// AllocateDir creates and returns the first of base, base(1), base(2)...
// that does not exist. The parent of base is created if needed.
func AllocateDir(base string) (string, error) {
	if base == "" {
		return "", errors.NewInvalidRequest("output directory is required")
	}
	base = filepath.Clean(base)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return "", errors.NewInternal(fmt.Errorf("create parent of %s: %w", base, err))
	}

	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s(%d)", base, n)
		}
		err := os.Mkdir(candidate, 0755)
		if err == nil {
			abs, absErr := filepath.Abs(candidate)
			if absErr != nil {
				return candidate, nil
			}
			return abs, nil
		}
		if !os.IsExist(err) {
			return "", errors.NewInternal(fmt.Errorf("create %s: %w", candidate, err))
		}
	}
}
