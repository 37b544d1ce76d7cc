// Package table reads the recipient CSV and the attendance spreadsheet.
package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/errors"
)

// Column names recognised in recipient tables.
const (
	ColFullName    = "Full Name"
	ColEmail       = "Email"
	ColAttachments = "Attachments"
	ColAttendance  = "Attendance"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Row is one recipient record. Row counts data rows from 1; Line is the
// file line, with the header on line 1.
type Row struct {
	Row         int               `json:"row"`
	Line        int               `json:"line"`
	FullName    string            `json:"full_name"`
	Email       string            `json:"email"`
	Attachments string            `json:"attachments,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Requirements lists the columns a table must carry.
type Requirements struct {
	NeedAttachments bool
	ExtraColumns    []string
}

// Table is a parsed recipient table.
type Table struct {
	Path       string             `json:"path"`
	Header     []string           `json:"header"`
	Rows       []Row              `json:"rows"`
	Warnings   []string           `json:"warnings,omitempty"`
	Duplicates []errors.Duplicate `json:"duplicates,omitempty"`
}

// Read parses the CSV at path and checks it against req.
func Read(path string, req Requirements) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInvalidTable(path, err.Error())
	}
	return Parse(path, data, req)
}

// Parse is Read over an in-memory file; path is used for messages only.
func Parse(path string, data []byte, req Requirements) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.NewInvalidTable(path, "file is empty")
	}
	if err != nil {
		return nil, errors.NewInvalidTable(path, fmt.Sprintf("cannot parse header: %v", err))
	}
	header = lo.Map(header, func(h string, _ int) string { return CleanHeader(h) })

	required := []string{ColFullName, ColEmail}
	if req.NeedAttachments {
		required = append(required, ColAttachments)
	}
	required = append(required, req.ExtraColumns...)
	if missing := lo.Without(lo.Uniq(required), header...); len(missing) > 0 {
		return nil, errors.NewMissingColumns(path, missing)
	}

	t := &Table{Path: path, Header: header}
	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInvalidTable(path, err.Error())
		}
		if isBlankRecord(rec) {
			continue
		}
		n++
		line, _ := r.FieldPos(0)

		row := Row{Row: n, Line: line, Fields: make(map[string]string, len(header))}
		for i, col := range header {
			if i < len(rec) {
				row.Fields[col] = strings.TrimSpace(rec[i])
			}
		}
		row.FullName = row.Fields[ColFullName]
		row.Email = row.Fields[ColEmail]
		row.Attachments = row.Fields[ColAttachments]

		if row.FullName == "" || row.Email == "" {
			t.Warnings = append(t.Warnings, fmt.Sprintf("row %d (line %d) is missing a name or email and will be skipped", row.Row, row.Line))
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) == 0 {
		return nil, errors.NewInvalidTable(path, "file only contains the header")
	}
	t.Duplicates = findDuplicates(t.Rows)
	return t, nil
}

// CleanHeader trims a column name and drops a trailing colon.
func CleanHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, string(bom)))
	return strings.TrimSpace(strings.TrimSuffix(h, ":"))
}

func isBlankRecord(rec []string) bool {
	return lo.EveryBy(rec, func(s string) bool { return strings.TrimSpace(s) == "" })
}

// findDuplicates groups rows by lower-cased email, in first-seen order.
func findDuplicates(rows []Row) []errors.Duplicate {
	withEmail := lo.Filter(rows, func(r Row, _ int) bool { return r.Email != "" })
	groups := lo.GroupBy(withEmail, func(r Row) string { return strings.ToLower(r.Email) })

	var dups []errors.Duplicate
	seen := make(map[string]bool)
	for _, r := range withEmail {
		key := strings.ToLower(r.Email)
		g := groups[key]
		if len(g) < 2 || seen[key] {
			continue
		}
		seen[key] = true
		first := strings.ToLower(g[0].FullName)
		dups = append(dups, errors.Duplicate{
			Email:     r.Email,
			Rows:      lo.Map(g, func(x Row, _ int) int { return x.Row }),
			SameNames: lo.EveryBy(g, func(x Row) bool { return strings.ToLower(x.FullName) == first }),
		})
	}
	return dups
}

// SortByName orders rows by full name, keeping the file order of equal names.
func SortByName(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FullName < rows[j].FullName
	})
}
