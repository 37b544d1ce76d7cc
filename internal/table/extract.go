package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/names"
)

// Files written by Extract.
const (
	RecipientsFile = "tosend.csv"
	WordlistFile   = "wordlist.txt"
)

// Extracted describes the files produced from an attendance spreadsheet.
type Extracted struct {
	RecipientsPath string   `json:"recipients_path"`
	WordlistPath   string   `json:"wordlist_path"`
	Names          []string `json:"names"`
	Skipped        int      `json:"skipped"`
}

// Extract keeps the rows of spreadsheet whose Attendance is TRUE and writes
// them to outDir as a recipient table and a wordlist, sorted by name.
func Extract(spreadsheet, outDir string) (*Extracted, error) {
	t, err := Read(spreadsheet, Requirements{ExtraColumns: []string{ColAttendance}})
	if err != nil {
		return nil, err
	}

	attended := lo.FilterMap(t.Rows, func(r Row, _ int) (Row, bool) {
		if !strings.EqualFold(r.Fields[ColAttendance], "TRUE") || r.FullName == "" {
			return Row{}, false
		}
		r.FullName = names.Title(r.FullName)
		return r, true
	})
	SortByName(attended)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("create %s: %w", outDir, err))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{ColFullName, ColEmail})
	for _, r := range attended {
		_ = w.Write([]string{r.FullName, r.Email})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.NewInternal(err)
	}

	out := &Extracted{
		RecipientsPath: filepath.Join(outDir, RecipientsFile),
		WordlistPath:   filepath.Join(outDir, WordlistFile),
		Names:          lo.Map(attended, func(r Row, _ int) string { return r.FullName }),
		Skipped:        len(t.Rows) - len(attended),
	}
	if err := os.WriteFile(out.RecipientsPath, buf.Bytes(), 0644); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("write %s: %w", out.RecipientsPath, err))
	}
	if err := names.WriteFile(out.WordlistPath, out.Names); err != nil {
		return nil, err
	}
	return out, nil
}
