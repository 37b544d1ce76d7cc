// Package dispatch sends one message per recipient row, sequentially, and
// keeps per-row failures from stopping the run.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hpungsan/certmail/internal/attach"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/mailer"
	"github.com/hpungsan/certmail/internal/names"
	"github.com/hpungsan/certmail/internal/table"
)

// Recorder persists row outcomes as they happen.
type Recorder interface {
	RecordDelivery(ctx context.Context, runID string, res Result) error
}

// ProgressFunc is called after each row settles.
type ProgressFunc func(res Result)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRecorder persists every row outcome.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithProgress reports each row outcome.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Dispatcher) { d.progress = fn }
}

// Dispatcher owns the row loop. It is not safe for concurrent use.
type Dispatcher struct {
	sender   mailer.Sender
	logger   *slog.Logger
	recorder Recorder
	progress ProgressFunc
}

// New returns a Dispatcher sending through sender.
func New(sender mailer.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{sender: sender, logger: logger.NewNope()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Job is one dispatch run.
type Job struct {
	RunID   string
	Rows    []table.Row
	Plan    *attach.Plan
	Body    *mailer.Body
	Subject string
}

// Dispatch sends to every row in order. AUTHENTICATION and NETWORK errors
// abort the run: the report is returned together with the error, and the
// rows after the failing one are marked not attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (*Report, error) {
	if job.Body == nil {
		return nil, errors.NewInvalidRequest("message body is required")
	}
	ctx = logger.WithRunID(ctx, job.RunID)
	report := &Report{RunID: job.RunID, Total: len(job.Rows), Results: make([]Result, 0, len(job.Rows))}
	if job.Plan != nil {
		report.Mode = string(job.Plan.Mode)
	}
	d.logger.InfoContext(ctx, "dispatch started", "rows", len(job.Rows), "mode", report.Mode)

	var fatal error
	for i, row := range job.Rows {
		if ctx.Err() != nil {
			fatal = errors.NewCancelled("dispatch")
			d.abort(ctx, report, job.Rows[i:], "cancelled")
			break
		}

		res, err := d.sendRow(ctx, job, row)
		d.settle(ctx, job.RunID, res)
		report.Results = append(report.Results, res)
		if err != nil {
			fatal = err
			d.abort(ctx, report, job.Rows[i+1:], string(errors.CodeOf(err)))
			break
		}
	}

	report.tally()
	d.logger.InfoContext(ctx, "dispatch finished", "summary", report.Summary())
	return report, fatal
}

// sendRow moves one row to a final state. A non-nil error means the run must stop.
func (d *Dispatcher) sendRow(ctx context.Context, job Job, row table.Row) (Result, error) {
	name := names.Title(row.FullName)
	res := Result{Row: row.Row, Line: row.Line, Name: name, Email: row.Email}

	switch {
	case name == "":
		return skip(res, ReasonMissingName), nil
	case strings.TrimSpace(row.Email) == "":
		return skip(res, ReasonMissingEmail), nil
	}

	paths := job.Plan.For(row)
	atts, err := mailer.LoadAttachments(paths)
	if err != nil {
		if errors.Is(err, errors.ErrMissingAttachment) {
			return skip(res, "missing attachment: "+missingFile(err)), nil
		}
		res.Status, res.Reason = StatusFailed, err.Error()
		return res, nil
	}
	res.Attachments = paths

	err = d.sender.Send(ctx, &mailer.Email{
		To:          row.Email,
		ToName:      name,
		Subject:     job.Subject,
		HTML:        job.Body.Personalize(name),
		Attachments: atts,
	})
	switch {
	case err == nil:
		res.Status = StatusSent
		return res, nil
	case ctx.Err() != nil:
		res.Status, res.Reason = StatusUnknown, "interrupted before the transport answered"
		return res, errors.NewCancelled("dispatch")
	case errors.Is(err, errors.ErrAuthentication), errors.Is(err, errors.ErrNetwork):
		res.Status, res.Reason = StatusFailed, err.Error()
		return res, err
	default:
		res.Status, res.Reason = StatusFailed, err.Error()
		return res, nil
	}
}

func (d *Dispatcher) settle(ctx context.Context, runID string, res Result) {
	attrs := []any{"row", res.Row, "line", res.Line, "email", res.Email, "status", res.Status}
	switch res.Status {
	case StatusSent:
		d.logger.InfoContext(ctx, "email sent", attrs...)
	default:
		d.logger.WarnContext(ctx, "email not sent", append(attrs, "reason", res.Reason)...)
	}
	d.record(ctx, runID, res)
	if d.progress != nil {
		d.progress(res)
	}
}

func (d *Dispatcher) abort(ctx context.Context, report *Report, rest []table.Row, reason string) {
	report.Aborted = true
	report.AbortReason = reason
	for _, row := range rest {
		res := Result{Row: row.Row, Line: row.Line, Name: names.Title(row.FullName), Email: row.Email, Status: StatusNotAttempted}
		report.Results = append(report.Results, res)
		d.record(ctx, report.RunID, res)
	}
	d.logger.ErrorContext(ctx, "dispatch aborted", "reason", reason, "not_attempted", len(rest))
}

func (d *Dispatcher) record(ctx context.Context, runID string, res Result) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordDelivery(ctx, runID, res); err != nil {
		d.logger.WarnContext(ctx, "failed to record delivery", "row", res.Row, "status", res.Status, "error", err)
	}
}

func skip(res Result, reason string) Result {
	res.Status, res.Reason = StatusSkipped, reason
	return res
}

func missingFile(err error) string {
	var cErr *errors.CertmailError
	if errors.As(err, &cErr) {
		if m, ok := cErr.Details["missing"].([]errors.Missing); ok && len(m) > 0 {
			return m[0].File
		}
	}
	return err.Error()
}
