package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/certmail/internal/attach"
	"github.com/hpungsan/certmail/internal/batch"
	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/dispatch"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/mailer"
)

// RunInput contains parameters for the Run operation.
type RunInput struct {
	Spreadsheet string // default: cfg.Paths.Spreadsheet
	WorkDir     string // receives tosend.csv and wordlist.txt; default: "."
	Template    string
	FontPath    string
	OutputDir   string
	Format      string
	Body        string
	Subject     string
	StateDir    string

	Sender     mailer.Sender
	OnRendered batch.ProgressFunc
	OnSent     dispatch.ProgressFunc
}

// RunOutput contains the result of the Run operation. Stages that did not
// run are nil.
type RunOutput struct {
	Extract *ExtractOutput `json:"extract"`
	Certify *CertifyOutput `json:"certify,omitempty"`
	Send    *SendOutput    `json:"send,omitempty"`
}

// Run extracts attendees, renders their certificates and mails each one its
// own certificate, in one process. The batch directory is handed straight
// to the send stage.
func Run(ctx context.Context, database *sql.DB, cfg *config.Config, input RunInput) (*RunOutput, error) {
	out := &RunOutput{}

	ex, err := Extract(ctx, cfg, ExtractInput{Spreadsheet: input.Spreadsheet, OutDir: input.WorkDir})
	if err != nil {
		return out, err
	}
	out.Extract = ex
	if len(ex.Names) == 0 {
		return out, errors.NewEmptyWordlist()
	}

	cert, err := Certify(ctx, database, cfg, CertifyInput{
		Names:     ex.Names,
		Template:  input.Template,
		FontPath:  input.FontPath,
		OutputDir: input.OutputDir,
		Format:    input.Format,
		StateDir:  input.StateDir,
		Progress:  input.OnRendered,
	})
	out.Certify = cert
	if err != nil {
		return out, err
	}

	sent, err := Send(ctx, database, cfg, SendInput{
		CheckInput: CheckInput{
			Recipients:      ex.RecipientsPath,
			Body:            input.Body,
			Mode:            string(attach.ModeOther),
			CertificatesDir: cert.Dir,
			Format:          cert.Format,
			BatchID:         cert.BatchID,
		},
		Subject:  input.Subject,
		Sender:   input.Sender,
		Progress: input.OnSent,
	})
	out.Send = sent
	return out, err
}
