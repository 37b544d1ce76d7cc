package mcp

import "github.com/mark3labs/mcp-go/mcp"

var namesToolDef = mcp.NewTool("certify_names",
	mcp.WithDescription("Validate a wordlist of recipient names. Names are trimmed, title-cased and sorted; "+
		"any name containing < > \" ? | / \\ : * fails the whole list with every offending line."),
	mcp.WithString("wordlist", mcp.Description("Path to the wordlist (.txt, one name per line). Default: paths.wordlist from config.")),
	mcp.WithBoolean("write", mcp.Description("Rewrite the wordlist in normalized order.")),
)

var renderToolDef = mcp.NewTool("certify_render",
	mcp.WithDescription("Render one certificate per name onto the template into a new output directory "+
		"(base, base(1), base(2)...). Existing batches are never overwritten."),
	mcp.WithArray("names", mcp.WithStringItems(), mcp.Description("Names to render. When omitted the wordlist is read.")),
	mcp.WithString("wordlist", mcp.Description("Path to the wordlist. Default: paths.wordlist.")),
	mcp.WithString("template", mcp.Description("PNG or JPEG template. Default: paths.template.")),
	mcp.WithString("font", mcp.Description("TrueType/OpenType font. Default: style.font_path.")),
	mcp.WithString("output_dir", mcp.Description("Output base directory. Default: output.dir.")),
	mcp.WithString("format", mcp.Enum("pdf", "png", "jpg", "jpeg"), mcp.Description("Certificate format. Default: output.format.")),
)

var checkToolDef = mcp.NewTool("certify_check",
	mcp.WithDescription("Run every pre-send check (recipient table, duplicate emails, attachments, message body) "+
		"without sending mail."),
	mcp.WithString("recipients", mcp.Description("Recipient CSV with Full Name and Email columns. Default: paths.recipients.")),
	mcp.WithString("body", mcp.Description("HTML or Markdown message body. Default: paths.body.")),
	mcp.WithString("mode", mcp.Enum("none", "common", "respective", "other"), mcp.Description("Attachment mode. Default: mail.mode.")),
	mcp.WithString("attachments_dir", mcp.Description("Base directory for common and respective attachments.")),
	mcp.WithString("certificates_dir", mcp.Description("Certificate batch directory for other mode. Default: the last rendered batch.")),
	mcp.WithString("format", mcp.Description("Certificate format for other mode.")),
)

var historyToolDef = mcp.NewTool("certify_history",
	mcp.WithDescription("List dispatch runs, newest first, or show one run with its per-row deliveries."),
	mcp.WithString("run_id", mcp.Description("Run to show. When omitted runs are listed.")),
	mcp.WithString("status", mcp.Enum("sent", "skipped", "failed", "unknown", "not_attempted"), mcp.Description("Filter deliveries of run_id.")),
	mcp.WithNumber("limit", mcp.Description("Runs per page (default 20, max 100).")),
	mcp.WithNumber("offset", mcp.Description("Runs to skip.")),
)
