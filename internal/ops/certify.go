package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/batch"
	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/names"
	"github.com/hpungsan/certmail/internal/render"
)

// CertifyInput contains parameters for the Certify operation.
type CertifyInput struct {
	// Names, when set, is normalized and used instead of reading Wordlist.
	Names     []string
	Wordlist  string // default: cfg.Paths.Wordlist
	Template  string // default: cfg.Paths.Template
	FontPath  string // default: cfg.Style.FontPath
	OutputDir string // default: cfg.Output.Dir
	Format    string // default: cfg.Output.Format
	// StateDir receives the last-batch pointer. Empty skips it.
	StateDir string
	Progress batch.ProgressFunc
}

// CertifyOutput contains the result of the Certify operation.
type CertifyOutput struct {
	BatchID string   `json:"batch_id"`
	Dir     string   `json:"dir"`
	Format  string   `json:"format"`
	Files   []string `json:"files"`
	Count   int      `json:"count"`
}

// Certify renders one certificate per name into a new output directory and
// records the batch. On RENDER_FAILED or CANCELLED the returned output lists
// the files already written alongside the error.
func Certify(ctx context.Context, database *sql.DB, cfg *config.Config, input CertifyInput) (*CertifyOutput, error) {
	log := logger.FromContext(ctx)

	format := strings.ToLower(strings.TrimPrefix(pick(input.Format, cfg.Output.Format), "."))
	if !render.ValidFormat(format) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be one of: %s (got %q)", strings.Join(render.Formats, ", "), format))
	}
	outputDir := pick(input.OutputDir, cfg.Output.Dir)
	if outputDir == "" {
		return nil, errors.NewInvalidRequest("output directory is required")
	}

	var list []string
	if len(input.Names) > 0 {
		var err error
		if list, err = names.Normalize(input.Names); err != nil {
			return nil, err
		}
	} else {
		path := pick(input.Wordlist, cfg.Paths.Wordlist)
		if err := ValidateInput(path, "wordlist", wordlistExts); err != nil {
			return nil, err
		}
		var err error
		if list, err = loadNames(path); err != nil {
			return nil, err
		}
	}

	tplPath := pick(input.Template, cfg.Paths.Template)
	fontPath := pick(input.FontPath, cfg.Style.FontPath)
	if err := ValidateInputs(
		InputCheck{Path: tplPath, Label: "template", Exts: templateExts},
		InputCheck{Path: fontPath, Label: "font", Exts: fontExts},
	); err != nil {
		return nil, err
	}

	r, err := newRenderer(cfg, tplPath, fontPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	now := time.Now()
	id, err := newID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	ctx = logger.WithRunID(ctx, id)

	res, renderErr := batch.Render(ctx, list, r, batch.Options{
		OutputBase: outputDir,
		Format:     format,
		Progress:   input.Progress,
		Logger:     log,
	})
	if res == nil {
		return nil, renderErr
	}

	out := &CertifyOutput{
		BatchID: id,
		Dir:     res.Dir,
		Format:  format,
		Files:   res.Files,
		Count:   len(res.Files),
	}
	if renderErr != nil {
		return out, renderErr
	}

	if database != nil {
		if err := db.InsertBatch(ctx, database, &db.Batch{
			ID:        id,
			OutputDir: res.Dir,
			Format:    format,
			Count:     len(res.Files),
			Template:  tplPath,
			CreatedAt: now.Unix(),
		}); err != nil {
			return out, err
		}
	}
	if input.StateDir != "" {
		if err := batch.WritePointer(input.StateDir, batch.NewPointer(id, res, format, now)); err != nil {
			return out, err
		}
	}
	return out, nil
}

// newRenderer loads the template and font and builds the batch style.
// A zero anchor coordinate means the template's center on that axis.
func newRenderer(cfg *config.Config, tplPath, fontPath string) (*render.Renderer, error) {
	tpl, err := render.LoadTemplate(tplPath)
	if err != nil {
		return nil, err
	}
	f, err := render.LoadFont(fontPath)
	if err != nil {
		return nil, err
	}

	fill, err := render.ParseColor(cfg.Style.Color)
	if err != nil {
		return nil, err
	}
	anchor := render.Point{X: cfg.Style.X, Y: cfg.Style.Y}
	if anchor.X == 0 {
		anchor.X = float64(tpl.Width()) / 2
	}
	if anchor.Y == 0 {
		anchor.Y = float64(tpl.Height()) / 2
	}

	style := render.Style{
		FontSize: cfg.Style.FontSize,
		Color:    fill,
		Anchor:   anchor,
		Spacing:  lo.FromPtr(cfg.Style.Spacing),
		Case:     render.CaseTransform(cfg.Style.Case),
	}
	return render.New(tpl, f, style, render.WithDPI(cfg.Output.DPI))
}
