package dispatch

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Status is the final state of one row.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	// StatusUnknown marks a send interrupted before the transport answered.
	StatusUnknown      Status = "unknown"
	StatusNotAttempted Status = "not_attempted"
)

// Skip reasons.
const (
	ReasonMissingName  = "missing recipient name"
	ReasonMissingEmail = "missing recipient email"
)

// Result is the outcome for one row.
type Result struct {
	Row         int      `json:"row"`
	Line        int      `json:"line"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Status      Status   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// Counts tallies results by status.
type Counts struct {
	Sent         int `json:"sent"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	Unknown      int `json:"unknown"`
	NotAttempted int `json:"not_attempted"`
}

// Report summarises a dispatch run.
type Report struct {
	RunID       string   `json:"run_id"`
	Mode        string   `json:"mode"`
	Total       int      `json:"total"`
	Counts      Counts   `json:"counts"`
	Aborted     bool     `json:"aborted"`
	AbortReason string   `json:"abort_reason,omitempty"`
	Results     []Result `json:"results"`
	Warnings    []string `json:"warnings,omitempty"`
}

func (r *Report) tally() {
	by := lo.CountValuesBy(r.Results, func(res Result) Status { return res.Status })
	r.Counts = Counts{
		Sent:         by[StatusSent],
		Skipped:      by[StatusSkipped],
		Failed:       by[StatusFailed],
		Unknown:      by[StatusUnknown],
		NotAttempted: by[StatusNotAttempted],
	}
}

// Problems returns the rows that were not sent, in row order.
func (r *Report) Problems() []Result {
	return lo.Filter(r.Results, func(res Result, _ int) bool {
		return res.Status != StatusSent
	})
}

// Summary is a one-line human readable result.
func (r *Report) Summary() string {
	c := r.Counts
	s := fmt.Sprintf("%d sent, %d skipped, %d failed", c.Sent, c.Skipped, c.Failed)
	if c.Unknown > 0 {
		s += fmt.Sprintf(", %d unknown", c.Unknown)
	}
	if r.Aborted {
		s += fmt.Sprintf("; aborted (%s), %d not attempted", r.AbortReason, c.NotAttempted)
	}
	problems := lo.FilterMap(r.Results, func(res Result, _ int) (string, bool) {
		if res.Status != StatusSkipped && res.Status != StatusFailed {
			return "", false
		}
		return fmt.Sprintf("row %d: %s", res.Row, res.Reason), true
	})
	if len(problems) > 0 {
		s += "; " + strings.Join(problems, "; ")
	}
	return s
}
