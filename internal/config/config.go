package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Config holds application configuration. Zero values mean "not set" and
// fall back to the lower layer in Merge.
type Config struct {
	Style  StyleConfig  `json:"style"`
	Paths  PathsConfig  `json:"paths"`
	Output OutputConfig `json:"output"`
	Mail   MailConfig   `json:"mail"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" validate:"gte=0"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" validate:"gte=0"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Secrets are never read from JSON; see LoadSecrets.
	Secrets Secrets `json:"-"`
}

// StyleConfig is the text style applied to every certificate in a batch.
type StyleConfig struct {
	FontPath string  `json:"font_path,omitempty"`
	FontSize float64 `json:"font_size,omitempty" validate:"gte=0"`
	// Color is #RRGGBB, #RGB or R,G,B.
	Color string `json:"color,omitempty"`
	// X is the horizontal center of the name. 0 means the template's center.
	X float64 `json:"x,omitempty" validate:"gte=0"`
	// Y is the text baseline. 0 means the template's vertical middle.
	Y float64 `json:"y,omitempty" validate:"gte=0"`
	// Spacing is extra space between glyphs. Nil inherits; an explicit 0 resets it.
	Spacing *float64 `json:"spacing,omitempty"`
	Case    string   `json:"case,omitempty" validate:"omitempty,oneof=title upper none"`
}

// PathsConfig locates the input files.
type PathsConfig struct {
	Template       string `json:"template,omitempty"`
	Wordlist       string `json:"wordlist,omitempty"`
	Recipients     string `json:"recipients,omitempty"`
	Spreadsheet    string `json:"spreadsheet,omitempty"`
	Body           string `json:"body,omitempty"`
	AttachmentsDir string `json:"attachments_dir,omitempty"`
}

// OutputConfig controls where certificates are written.
type OutputConfig struct {
	// Dir is the batch output base; Dir(1), Dir(2)... are used when taken.
	Dir    string `json:"dir,omitempty"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=pdf png jpg jpeg"`
	// DPI sizes PDF pages from template pixels.
	DPI float64 `json:"dpi,omitempty" validate:"gte=0"`
}

// MailConfig controls dispatch.
type MailConfig struct {
	Transport string `json:"transport,omitempty" validate:"omitempty,oneof=smtp resend"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=none common respective other"`
	Subject   string `json:"subject,omitempty"`
	From      string `json:"from,omitempty" validate:"omitempty,email"`
	FromName  string `json:"from_name,omitempty"`

	SMTPHost     string `json:"smtp_host,omitempty" validate:"omitempty,hostname|ip"`
	SMTPPort     int    `json:"smtp_port,omitempty" validate:"gte=0,lte=65535"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPTLS      string `json:"smtp_tls,omitempty" validate:"omitempty,oneof=mandatory opportunistic none"`
	// TimeoutSeconds bounds one SMTP connection.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"gte=0"`
	// Retries bounds the attempts after a temporary failure.
	Retries *int `json:"retries,omitempty" validate:"omitempty,gte=0,lte=10"`

	ResendBaseURL string `json:"resend_base_url,omitempty" validate:"omitempty,url"`

	// AllowDuplicates sends to every row sharing an email instead of failing.
	AllowDuplicates *bool `json:"allow_duplicates,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Style: StyleConfig{
			FontSize: 48,
			Color:    "#000000",
			Case:     "title",
		},
		Output: OutputConfig{
			Dir:    "Generated_Certificates",
			Format: "pdf",
			DPI:    150,
		},
		Mail: MailConfig{
			Transport:      "smtp",
			Mode:           "other",
			Subject:        "Your certificate",
			SMTPHost:       "smtp.gmail.com",
			SMTPPort:       587,
			SMTPTLS:        "mandatory",
			TimeoutSeconds: 30,
			Retries:        lo.ToPtr(3),
		},
		LogLevel: "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the home (~/.certmail) and the
// project (.certmail) directories. The project config is found by walking
// upward from startDir. Project values win for scalars; arrays are merged.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .certmail/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".certmail", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero config (not defaults) if the file doesn't exist.
// Relative paths inside the file are resolved against the file's directory
// when it lives in a .certmail directory.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if filepath.Base(filepath.Dir(configPath)) == ".certmail" {
		cfg.resolvePaths(filepath.Dir(filepath.Dir(configPath)))
	}
	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// resolvePaths makes relative file paths absolute against root.
func (c *Config) resolvePaths(root string) {
	for _, p := range []*string{
		&c.Style.FontPath,
		&c.Paths.Template, &c.Paths.Wordlist, &c.Paths.Recipients,
		&c.Paths.Spreadsheet, &c.Paths.Body, &c.Paths.AttachmentsDir,
		&c.Output.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Style = StyleConfig{
		FontPath: pick(overlay.Style.FontPath, base.Style.FontPath),
		FontSize: pick(overlay.Style.FontSize, base.Style.FontSize),
		Color:    pick(overlay.Style.Color, base.Style.Color),
		X:        pick(overlay.Style.X, base.Style.X),
		Y:        pick(overlay.Style.Y, base.Style.Y),
		Spacing:  pick(overlay.Style.Spacing, base.Style.Spacing),
		Case:     pick(overlay.Style.Case, base.Style.Case),
	}
	result.Paths = PathsConfig{
		Template:       pick(overlay.Paths.Template, base.Paths.Template),
		Wordlist:       pick(overlay.Paths.Wordlist, base.Paths.Wordlist),
		Recipients:     pick(overlay.Paths.Recipients, base.Paths.Recipients),
		Spreadsheet:    pick(overlay.Paths.Spreadsheet, base.Paths.Spreadsheet),
		Body:           pick(overlay.Paths.Body, base.Paths.Body),
		AttachmentsDir: pick(overlay.Paths.AttachmentsDir, base.Paths.AttachmentsDir),
	}
	result.Output = OutputConfig{
		Dir:    pick(overlay.Output.Dir, base.Output.Dir),
		Format: pick(overlay.Output.Format, base.Output.Format),
		DPI:    pick(overlay.Output.DPI, base.Output.DPI),
	}
	result.Mail = MailConfig{
		Transport:      pick(overlay.Mail.Transport, base.Mail.Transport),
		Mode:           pick(overlay.Mail.Mode, base.Mail.Mode),
		Subject:        pick(overlay.Mail.Subject, base.Mail.Subject),
		From:           pick(overlay.Mail.From, base.Mail.From),
		FromName:       pick(overlay.Mail.FromName, base.Mail.FromName),
		SMTPHost:       pick(overlay.Mail.SMTPHost, base.Mail.SMTPHost),
		SMTPPort:       pick(overlay.Mail.SMTPPort, base.Mail.SMTPPort),
		SMTPUsername:   pick(overlay.Mail.SMTPUsername, base.Mail.SMTPUsername),
		SMTPTLS:        pick(overlay.Mail.SMTPTLS, base.Mail.SMTPTLS),
		TimeoutSeconds: pick(overlay.Mail.TimeoutSeconds, base.Mail.TimeoutSeconds),
		Retries:        pick(overlay.Mail.Retries, base.Mail.Retries),
		ResendBaseURL:  pick(overlay.Mail.ResendBaseURL, base.Mail.ResendBaseURL),
		AllowDuplicates: pick(overlay.Mail.AllowDuplicates, base.Mail.AllowDuplicates),
	}

	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.Secrets = Secrets{
		SMTPPassword: pick(overlay.Secrets.SMTPPassword, base.Secrets.SMTPPassword),
		ResendAPIKey: pick(overlay.Secrets.ResendAPIKey, base.Secrets.ResendAPIKey),
	}

	return result
}

// pick returns overlay unless it is the zero value. Fields where zero is a
// meaningful setting are pointers, so only an absent key falls through.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
