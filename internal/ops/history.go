package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/dispatch"
	"github.com/hpungsan/certmail/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	// RunID selects one run and its deliveries; empty lists runs.
	RunID string
	// Status filters deliveries of RunID (sent, skipped, failed, unknown, not_attempted).
	Status string
	Limit  int // default: 20, max: 100
	Offset int
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Runs       []db.Run      `json:"runs,omitempty"`
	Run        *db.Run       `json:"run,omitempty"`
	Deliveries []db.Delivery `json:"deliveries,omitempty"`
	Pagination *Pagination   `json:"pagination,omitempty"`
}

var deliveryStatuses = []dispatch.Status{
	dispatch.StatusSent,
	dispatch.StatusSkipped,
	dispatch.StatusFailed,
	dispatch.StatusUnknown,
	dispatch.StatusNotAttempted,
}

// History lists recorded dispatch runs, or one run with its deliveries.
func History(ctx context.Context, database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	if database == nil {
		return nil, errors.NewInternal(fmt.Errorf("ledger is not open"))
	}

	runID := strings.TrimSpace(input.RunID)
	if runID != "" {
		status := strings.TrimSpace(input.Status)
		if status != "" && !validStatus(status) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("status must be one of: sent, skipped, failed, unknown, not_attempted (got %q)", status))
		}
		run, err := db.GetRun(ctx, database, runID)
		if err != nil {
			return nil, err
		}
		deliveries, err := db.ListDeliveries(ctx, database, runID, status)
		if err != nil {
			return nil, err
		}
		return &HistoryOutput{Run: run, Deliveries: deliveries}, nil
	}
	if input.Status != "" {
		return nil, errors.NewInvalidRequest("status requires run_id")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	runs, total, err := db.ListRuns(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{
		Runs: runs,
		Pagination: &Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

func validStatus(s string) bool {
	for _, st := range deliveryStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}
