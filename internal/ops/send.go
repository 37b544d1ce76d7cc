package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/dispatch"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/mailer"
)

// Transports
const (
	TransportSMTP   = "smtp"
	TransportResend = "resend"
)

// SendInput contains parameters for the Send operation.
type SendInput struct {
	CheckInput
	Subject string // default: cfg.Mail.Subject
	// Sender overrides the transport built from cfg.
	Sender   mailer.Sender
	Progress dispatch.ProgressFunc
}

// SendOutput contains the result of the Send operation.
type SendOutput struct {
	Check  *CheckOutput     `json:"check"`
	Report *dispatch.Report `json:"report"`
}

// Send runs the pre-send checks and then mails every row. An aborted run
// returns its report together with the AUTHENTICATION, NETWORK or CANCELLED error.
func Send(ctx context.Context, database *sql.DB, cfg *config.Config, input SendInput) (*SendOutput, error) {
	log := logger.FromContext(ctx)

	subject := pick(input.Subject, cfg.Mail.Subject)
	if subject == "" {
		return nil, errors.NewInvalidRequest("subject is required")
	}

	p, err := prepare(ctx, database, cfg, input.CheckInput)
	if err != nil {
		return nil, err
	}

	sender := input.Sender
	transport := "custom"
	if sender == nil {
		transport = pick(cfg.Mail.Transport, TransportSMTP)
		if sender, err = NewSender(cfg, log); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	runID, err := newID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	run := &db.Run{
		ID:         runID,
		BatchID:    p.out.BatchID,
		Mode:       p.out.Mode,
		Transport:  transport,
		Subject:    subject,
		Recipients: p.out.Recipients,
		Total:      len(p.table.Rows),
		StartedAt:  now.Unix(),
	}

	opts := []dispatch.Option{dispatch.WithLogger(log), dispatch.WithProgress(input.Progress)}
	if database != nil {
		if err := db.InsertRun(ctx, database, run); err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithRecorder(ledger{db: database}))
	}

	report, dispatchErr := dispatch.New(sender, opts...).Dispatch(ctx, dispatch.Job{
		RunID:   runID,
		Rows:    p.table.Rows,
		Plan:    p.plan,
		Body:    p.body,
		Subject: subject,
	})
	if report == nil {
		return nil, dispatchErr
	}
	report.Warnings = append(report.Warnings, p.out.Warnings...)

	if database != nil {
		finished := time.Now().Unix()
		run.Sent = report.Counts.Sent
		run.Skipped = report.Counts.Skipped
		run.Failed = report.Counts.Failed
		run.Unknown = report.Counts.Unknown
		run.NotAttempted = report.Counts.NotAttempted
		run.Aborted = report.Aborted
		run.AbortReason = report.AbortReason
		run.FinishedAt = &finished
		if err := db.FinishRun(context.WithoutCancel(ctx), database, run); err != nil {
			log.WarnContext(ctx, "failed to finish run", "run_id", runID, "error", err)
		}
	}

	return &SendOutput{Check: p.out, Report: report}, dispatchErr
}

// NewSender builds the transport named by cfg.Mail.Transport.
func NewSender(cfg *config.Config, log *slog.Logger) (mailer.Sender, error) {
	switch strings.ToLower(pick(cfg.Mail.Transport, TransportSMTP)) {
	case TransportSMTP:
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: pick(cfg.Mail.SMTPUsername, cfg.Mail.From),
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			TLS:      cfg.Mail.SMTPTLS,
			Timeout:  time.Duration(cfg.Mail.TimeoutSeconds) * time.Second,
			Retries:  uint64(lo.FromPtr(cfg.Mail.Retries)),
		}, log)
	case TransportResend:
		return mailer.NewResend(mailer.ResendConfig{
			APIKey:   cfg.Secrets.ResendAPIKey,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			BaseURL:  cfg.Mail.ResendBaseURL,
		})
	default:
		return nil, errors.NewInvalidConfig(fmt.Sprintf("mail.transport must be one of: smtp, resend (got %q)", cfg.Mail.Transport))
	}
}
