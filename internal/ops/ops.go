package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/dispatch"
)

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// newID returns a time-ordered id for batches and runs.
func newID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// pick returns the first non-blank value.
func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ledger writes dispatch outcomes to the deliveries table.
type ledger struct {
	db *sql.DB
}

// RecordDelivery keeps writing after ctx is cancelled so interrupted rows are still recorded.
func (l ledger) RecordDelivery(ctx context.Context, runID string, res dispatch.Result) error {
	return db.RecordDelivery(context.WithoutCancel(ctx), l.db, &db.Delivery{
		RunID:       runID,
		Row:         res.Row,
		Line:        res.Line,
		Name:        res.Name,
		Email:       res.Email,
		Status:      string(res.Status),
		Reason:      res.Reason,
		Attachments: res.Attachments,
		RecordedAt:  time.Now().Unix(),
	})
}
