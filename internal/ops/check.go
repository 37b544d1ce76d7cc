package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/attach"
	"github.com/hpungsan/certmail/internal/batch"
	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/mailer"
	"github.com/hpungsan/certmail/internal/table"
)

// CheckInput contains parameters for the Check operation. Send accepts the same fields.
type CheckInput struct {
	Recipients     string // default: cfg.Paths.Recipients
	Body           string // default: cfg.Paths.Body
	Mode           string // default: cfg.Mail.Mode
	AttachmentsDir string // default: cfg.Paths.AttachmentsDir
	// CertificatesDir and Format locate certificates in other mode. When
	// empty they come from the last-batch pointer in StateDir, then from
	// the ledger's latest batch.
	CertificatesDir string
	Format          string
	StateDir        string
	// BatchID links the run to a batch; filled from the pointer when found.
	BatchID string
}

// CheckOutput contains the result of the Check operation.
type CheckOutput struct {
	Recipients      string             `json:"recipients"`
	Body            string             `json:"body"`
	Mode            string             `json:"mode"`
	Rows            int                `json:"rows"`
	Sendable        int                `json:"sendable"`
	Attachments     int                `json:"attachments"`
	CertificatesDir string             `json:"certificates_dir,omitempty"`
	BatchID         string             `json:"batch_id,omitempty"`
	Duplicates      []errors.Duplicate `json:"duplicates,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// prepared is everything a dispatch run needs once the checks pass.
type prepared struct {
	table *table.Table
	plan  *attach.Plan
	body  *mailer.Body
	out   *CheckOutput
}

// Check runs every pre-send validation without contacting a transport.
func Check(ctx context.Context, database *sql.DB, cfg *config.Config, input CheckInput) (*CheckOutput, error) {
	p, err := prepare(ctx, database, cfg, input)
	if err != nil {
		return nil, err
	}
	return p.out, nil
}

func prepare(ctx context.Context, database *sql.DB, cfg *config.Config, input CheckInput) (*prepared, error) {
	log := logger.FromContext(ctx)

	mode, err := attach.ParseMode(pick(input.Mode, cfg.Mail.Mode))
	if err != nil {
		return nil, err
	}
	recipients := pick(input.Recipients, cfg.Paths.Recipients)
	bodyPath := pick(input.Body, cfg.Paths.Body)
	if err := ValidateInputs(
		InputCheck{Path: recipients, Label: "recipient table", Exts: tableExts},
		InputCheck{Path: bodyPath, Label: "message body", Exts: bodyExts},
	); err != nil {
		return nil, err
	}

	t, err := table.Read(recipients, table.Requirements{NeedAttachments: mode.NeedsColumn()})
	if err != nil {
		return nil, err
	}
	warnings := append([]string(nil), t.Warnings...)
	if len(t.Duplicates) > 0 {
		if !lo.FromPtr(cfg.Mail.AllowDuplicates) {
			return nil, errors.NewDuplicateEmail(t.Duplicates)
		}
		for _, d := range t.Duplicates {
			warnings = append(warnings, fmt.Sprintf("email %q is shared by rows %v; every row will be sent", d.Email, d.Rows))
		}
	}

	opts := attach.Options{AttachmentsDir: pick(input.AttachmentsDir, cfg.Paths.AttachmentsDir)}
	batchID := input.BatchID
	if mode == attach.ModeOther {
		loc, err := locateCertificates(ctx, database, cfg, input)
		if err != nil {
			return nil, err
		}
		opts.CertificatesDir, opts.Format = loc.dir, loc.format
		if batchID == "" {
			batchID = loc.batchID
		}
	}

	resolver, err := attach.NewResolver(mode, opts, t.Rows)
	if err != nil {
		return nil, err
	}
	plan, err := attach.Precheck(resolver, t.Rows)
	if err != nil {
		return nil, err
	}

	body, err := mailer.LoadBody(bodyPath)
	if err != nil {
		return nil, err
	}

	out := &CheckOutput{
		Recipients:      recipients,
		Body:            bodyPath,
		Mode:            string(mode),
		Rows:            len(t.Rows),
		Sendable:        len(plan.Paths),
		CertificatesDir: opts.CertificatesDir,
		BatchID:         batchID,
		Duplicates:      t.Duplicates,
		Warnings:        warnings,
	}
	for _, paths := range plan.Paths {
		out.Attachments += len(paths)
	}
	for _, w := range warnings {
		log.WarnContext(ctx, "recipient table warning", "path", recipients, "warning", w)
	}
	log.InfoContext(ctx, "pre-send checks passed", "rows", out.Rows, "sendable", out.Sendable, "mode", out.Mode)
	return &prepared{table: t, plan: plan, body: body, out: out}, nil
}

type certLocation struct {
	dir     string
	format  string
	batchID string
}

// locateCertificates finds the batch directory used in other mode.
func locateCertificates(ctx context.Context, database *sql.DB, cfg *config.Config, input CheckInput) (certLocation, error) {
	if input.CertificatesDir != "" {
		return certLocation{
			dir:     input.CertificatesDir,
			format:  pick(input.Format, cfg.Output.Format),
			batchID: input.BatchID,
		}, nil
	}

	var pointerErr error
	if input.StateDir != "" {
		p, err := batch.ReadPointer(input.StateDir)
		if err == nil {
			return certLocation{dir: p.OutputDir, format: pick(input.Format, p.Format), batchID: p.BatchID}, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return certLocation{}, err
		}
		pointerErr = err
	}

	if database != nil {
		b, err := db.LatestBatch(ctx, database)
		if err == nil {
			return certLocation{dir: b.OutputDir, format: pick(input.Format, b.Format), batchID: b.ID}, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return certLocation{}, err
		}
	}

	if pointerErr != nil {
		return certLocation{}, pointerErr
	}
	return certLocation{}, errors.NewInvalidRequest("certificates directory is required in other mode; run `certmail render` first or pass --certificates")
}
