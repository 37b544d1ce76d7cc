package ops

import (
	"context"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/table"
)

// ExtractInput contains parameters for the Extract operation.
type ExtractInput struct {
	Spreadsheet string // default: cfg.Paths.Spreadsheet
	OutDir      string // default: "."
}

// ExtractOutput contains the result of the Extract operation.
type ExtractOutput struct {
	table.Extracted
	Count int `json:"count"`
}

// Extract writes the attendees of a spreadsheet export as a recipient table and a wordlist.
func Extract(ctx context.Context, cfg *config.Config, input ExtractInput) (*ExtractOutput, error) {
	path := pick(input.Spreadsheet, cfg.Paths.Spreadsheet)
	if err := ValidateInput(path, "spreadsheet", tableExts); err != nil {
		return nil, err
	}

	ex, err := table.Extract(path, pick(input.OutDir, "."))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).InfoContext(ctx, "attendees extracted",
		"spreadsheet", path, "count", len(ex.Names), "skipped", ex.Skipped)
	return &ExtractOutput{Extracted: *ex, Count: len(ex.Names)}, nil
}
