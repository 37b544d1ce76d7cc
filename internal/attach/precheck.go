package attach

import (
	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/table"
)

// Plan holds the resolved attachment paths keyed by data row number.
type Plan struct {
	Mode  Mode             `json:"mode"`
	Paths map[int][]string `json:"paths"`
}

// For returns the planned paths for row.
func (p *Plan) For(row table.Row) []string {
	if p == nil {
		return nil
	}
	return p.Paths[row.Row]
}

// Precheck resolves every sendable row before anything is sent. Rows without
// a name or email are left out; the dispatcher skips them. Any missing file
// fails the whole plan with one consolidated error. Shared files in common
// mode are reported once, against the first row.
func Precheck(r *Resolver, rows []table.Row) (*Plan, error) {
	plan := &Plan{Mode: r.Mode(), Paths: make(map[int][]string, len(rows))}
	var missing []errors.Missing
	for _, row := range rows {
		if row.FullName == "" || row.Email == "" {
			continue
		}
		paths, miss := r.Resolve(row)
		plan.Paths[row.Row] = paths
		missing = append(missing, miss...)
	}
	if r.Mode() == ModeCommon {
		missing = lo.UniqBy(missing, func(m errors.Missing) string { return m.File })
	}
	if len(missing) > 0 {
		return plan, errors.NewMissingAttachment(missing)
	}
	return plan, nil
}
