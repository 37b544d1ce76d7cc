package ops

import (
	"context"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/names"
)

// NamesInput contains parameters for the Names operation.
type NamesInput struct {
	Wordlist string // default: cfg.Paths.Wordlist
	Write    bool   // rewrite the wordlist in normalized order
}

// NamesOutput contains the result of the Names operation.
type NamesOutput struct {
	Path      string   `json:"path"`
	Names     []string `json:"names"`
	Count     int      `json:"count"`
	Rewritten bool     `json:"rewritten"`
}

// Names validates and normalizes a wordlist.
func Names(ctx context.Context, cfg *config.Config, input NamesInput) (*NamesOutput, error) {
	path := pick(input.Wordlist, cfg.Paths.Wordlist)
	if err := ValidateInput(path, "wordlist", wordlistExts); err != nil {
		return nil, err
	}

	list, err := loadNames(path)
	if err != nil {
		return nil, err
	}

	out := &NamesOutput{Path: path, Names: list, Count: len(list)}
	if input.Write {
		if err := names.WriteFile(path, list); err != nil {
			return nil, err
		}
		out.Rewritten = true
	}
	logger.FromContext(ctx).InfoContext(ctx, "wordlist validated", "path", path, "count", len(list), "rewritten", out.Rewritten)
	return out, nil
}

func loadNames(path string) ([]string, error) {
	lines, err := names.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return names.Normalize(lines)
}
