package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	home string
}

// NewHandlers creates a new Handlers instance. home holds the last-batch pointer.
func NewHandlers(db *sql.DB, cfg *config.Config, home string) *Handlers {
	return &Handlers{db: db, cfg: cfg, home: home}
}

// Request types for each tool

// NamesRequest represents the arguments for certify_names.
type NamesRequest struct {
	Wordlist string `json:"wordlist,omitempty"`
	Write    bool   `json:"write,omitempty"`
}

// RenderRequest represents the arguments for certify_render.
type RenderRequest struct {
	Names     []string `json:"names,omitempty"`
	Wordlist  string   `json:"wordlist,omitempty"`
	Template  string   `json:"template,omitempty"`
	Font      string   `json:"font,omitempty"`
	OutputDir string   `json:"output_dir,omitempty"`
	Format    string   `json:"format,omitempty"`
}

// CheckRequest represents the arguments for certify_check.
type CheckRequest struct {
	Recipients      string `json:"recipients,omitempty"`
	Body            string `json:"body,omitempty"`
	Mode            string `json:"mode,omitempty"`
	AttachmentsDir  string `json:"attachments_dir,omitempty"`
	CertificatesDir string `json:"certificates_dir,omitempty"`
	Format          string `json:"format,omitempty"`
}

// HistoryRequest represents the arguments for certify_history.
type HistoryRequest struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Handler implementations

// HandleNames handles the certify_names tool call.
func (h *Handlers) HandleNames(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NamesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Names(ctx, h.cfg, ops.NamesInput{
		Wordlist: input.Wordlist,
		Write:    input.Write,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRender handles the certify_render tool call.
func (h *Handlers) HandleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Certify(ctx, h.db, h.cfg, ops.CertifyInput{
		Names:     input.Names,
		Wordlist:  input.Wordlist,
		Template:  input.Template,
		FontPath:  input.Font,
		OutputDir: input.OutputDir,
		Format:    input.Format,
		StateDir:  h.home,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCheck handles the certify_check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Check(ctx, h.db, h.cfg, ops.CheckInput{
		Recipients:      input.Recipients,
		Body:            input.Body,
		Mode:            input.Mode,
		AttachmentsDir:  input.AttachmentsDir,
		CertificatesDir: input.CertificatesDir,
		Format:          input.Format,
		StateDir:        h.home,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the certify_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(ctx, h.db, ops.HistoryInput{
		RunID:  input.RunID,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.CertmailError
	if errors.As(err, &cErr) {
		msg := cErr.Message
		if err != error(cErr) {
			// Keep wrapper context such as "row 3: ..." in front of the message.
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": msg,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
