package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/dispatch"
	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, home string) *cli.App {
	app := &cli.App{
		Name:    "certmail",
		Usage:   "Render personalized certificates and mail them to attendees",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Usage: "State directory (config, ledger, log). Default: $CERTMAIL_HOME or ~/.certmail"},
		},
		Commands: []*cli.Command{
			namesCmd(cfg),
			renderCmd(db, cfg, home),
			checkCmd(db, cfg, home),
			sendCmd(db, cfg, home),
			extractCmd(cfg),
			runCmd(db, cfg, home),
			historyCmd(db),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// namesCmd creates the names command.
func namesCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "names",
		Usage:     "Validate and normalize a wordlist",
		ArgsUsage: "[wordlist]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "Rewrite the wordlist sorted and title-cased"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Names(c.Context, cfg, ops.NamesInput{
				Wordlist: c.Args().First(),
				Write:    c.Bool("write"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// renderCmd creates the render command.
func renderCmd(db *sql.DB, cfg *config.Config, home string) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render one certificate per name in the wordlist",
		ArgsUsage: "[wordlist]",
		Flags:     renderFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Certify(c.Context, db, cfg, ops.CertifyInput{
				Wordlist:  c.Args().First(),
				Template:  c.String("template"),
				FontPath:  c.String("font"),
				OutputDir: c.String("output"),
				Format:    c.String("format"),
				StateDir:  home,
				Progress:  renderProgress,
			})
			if output != nil {
				if jsonErr := outputJSON(output); jsonErr != nil && err == nil {
					err = jsonErr
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// checkCmd creates the check command.
func checkCmd(db *sql.DB, cfg *config.Config, home string) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Run every pre-send check without sending",
		ArgsUsage: "[recipients.csv]",
		Flags:     checkFlags(),
		Action: func(c *cli.Context) error {
			cfg := overrideMail(c, cfg)
			output, err := ops.Check(c.Context, db, cfg, checkInput(c, home))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// sendCmd creates the send command.
func sendCmd(db *sql.DB, cfg *config.Config, home string) *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Mail every recipient row its message and attachments",
		ArgsUsage: "[recipients.csv]",
		Flags: append(checkFlags(),
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Message subject"},
			&cli.StringFlag{Name: "transport", Usage: "Mail transport: smtp|resend"},
		),
		Action: func(c *cli.Context) error {
			cfg := overrideMail(c, cfg)
			output, err := ops.Send(c.Context, db, cfg, ops.SendInput{
				CheckInput: checkInput(c, home),
				Subject:    c.String("subject"),
				Progress:   sendProgress,
			})
			if output != nil {
				fmt.Fprintln(os.Stderr, output.Report.Summary())
				if jsonErr := outputJSON(output); jsonErr != nil && err == nil {
					err = jsonErr
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// extractCmd creates the extract command.
func extractCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Write tosend.csv and wordlist.txt from an attendance spreadsheet export",
		ArgsUsage: "[spreadsheet.csv]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "Directory for the extracted files"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Extract(c.Context, cfg, ops.ExtractInput{
				Spreadsheet: c.Args().First(),
				OutDir:      c.String("out"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// runCmd creates the run command.
func runCmd(db *sql.DB, cfg *config.Config, home string) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Extract attendees, render their certificates and mail them, in one go",
		ArgsUsage: "[spreadsheet.csv]",
		Flags: append(renderFlags(),
			&cli.StringFlag{Name: "workdir", Value: ".", Usage: "Directory for tosend.csv and wordlist.txt"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "HTML or Markdown message body"},
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Message subject"},
			&cli.StringFlag{Name: "transport", Usage: "Mail transport: smtp|resend"},
			&cli.BoolFlag{Name: "allow-duplicates", Usage: "Send to every row sharing an email address"},
		),
		Action: func(c *cli.Context) error {
			cfg := overrideMail(c, cfg)
			output, err := ops.Run(c.Context, db, cfg, ops.RunInput{
				Spreadsheet: c.Args().First(),
				WorkDir:     c.String("workdir"),
				Template:    c.String("template"),
				FontPath:    c.String("font"),
				OutputDir:   c.String("output"),
				Format:      c.String("format"),
				Body:        c.String("body"),
				Subject:     c.String("subject"),
				StateDir:    home,
				OnRendered:  renderProgress,
				OnSent:      sendProgress,
			})
			if output != nil {
				if output.Send != nil {
					fmt.Fprintln(os.Stderr, output.Send.Report.Summary())
				}
				if jsonErr := outputJSON(output); jsonErr != nil && err == nil {
					err = jsonErr
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List dispatch runs, or show one run's deliveries",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Filter deliveries: sent|skipped|failed|unknown|not_attempted"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum runs to return"},
			&cli.IntFlag{Name: "offset", Usage: "Runs to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(c.Context, db, ops.HistoryInput{
				RunID:  c.Args().First(),
				Status: c.String("status"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Flag sets

func renderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "PNG or JPEG template"},
		&cli.StringFlag{Name: "font", Aliases: []string{"f"}, Usage: "TrueType/OpenType font file"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output base directory"},
		&cli.StringFlag{Name: "format", Usage: "Certificate format: pdf|png|jpg"},
	}
}

func checkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "HTML or Markdown message body"},
		&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Attachment mode: none|common|respective|other"},
		&cli.StringFlag{Name: "attachments", Aliases: []string{"a"}, Usage: "Base directory for common and respective attachments"},
		&cli.StringFlag{Name: "certificates", Aliases: []string{"c"}, Usage: "Certificate batch directory (other mode). Default: last rendered batch"},
		&cli.StringFlag{Name: "format", Usage: "Certificate format (other mode)"},
		&cli.BoolFlag{Name: "allow-duplicates", Usage: "Send to every row sharing an email address"},
	}
}

func checkInput(c *cli.Context, home string) ops.CheckInput {
	return ops.CheckInput{
		Recipients:      c.Args().First(),
		Body:            c.String("body"),
		Mode:            c.String("mode"),
		AttachmentsDir:  c.String("attachments"),
		CertificatesDir: c.String("certificates"),
		Format:          c.String("format"),
		StateDir:        home,
	}
}

// overrideMail returns a copy of cfg with the mail flags of c applied.
func overrideMail(c *cli.Context, cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	if c.IsSet("allow-duplicates") {
		out.Mail.AllowDuplicates = lo.ToPtr(c.Bool("allow-duplicates"))
	}
	if c.IsSet("transport") {
		out.Mail.Transport = c.String("transport")
	}
	return &out
}

// Progress lines go to stderr so stdout stays valid JSON.

func renderProgress(index int, name, file string) {
	fmt.Fprintf(os.Stderr, "%d. %s -> %s\n", index, name, file)
}

func sendProgress(res dispatch.Result) {
	line := fmt.Sprintf("row %d %s <%s>: %s", res.Row, res.Name, res.Email, res.Status)
	if res.Reason != "" {
		line += " (" + res.Reason + ")"
	}
	fmt.Fprintln(os.Stderr, line)
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CertmailError
	if errors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
