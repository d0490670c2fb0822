package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/tracmark/internal/markup"
	"github.com/starford/tracmark/internal/trac"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DateLayout is the format of filter.since. The default cutoff is the date
// of the first Trac release.
const DateLayout = "2006-01-02"

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Trac    TracConfig        `yaml:"trac"`
	Output  OutputConfig      `yaml:"output"`
	Filter  FilterConfig      `yaml:"filter"`
	Links   LinksConfig       `yaml:"links"`
	State   StateConfig       `yaml:"state"`
	Migrate MigrateConfig     `yaml:"migrate"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Trac, &c.Output, &c.Filter, &c.Links, &c.State, &c.Migrate, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// TracConfig locates the Trac environment. DBPath defaults to db/trac.db
// inside the environment.
type TracConfig struct {
	EnvPath string `yaml:"env_path"`
	DBPath  string `yaml:"db_path"`
}

// Validate validates the Trac configuration.
func (c *TracConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.EnvPath, validation.Required),
	)
}

// Database returns the path of the Trac database.
func (c *TracConfig) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return trac.DefaultDBPath(c.EnvPath)
}

// OutputConfig holds where converted pages and attachments are written.
type OutputConfig struct {
	WikiDir        string `yaml:"wiki_dir"`
	AttachmentsDir string `yaml:"attachments_dir"`
	AttachmentsURL string `yaml:"attachments_url"`
	Extension      string `yaml:"extension"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WikiDir, validation.Required),
		validation.Field(&c.AttachmentsDir, validation.Required),
		validation.Field(&c.AttachmentsURL, validation.Required),
		validation.Field(&c.Extension, validation.Required, is.Alphanumeric),
	)
}

// FilterConfig selects the pages to migrate.
type FilterConfig struct {
	Since  string   `yaml:"since"`
	Ignore []string `yaml:"ignore"`
	Page   string   `yaml:"page"`
}

// Validate validates the filter configuration.
func (c *FilterConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Since, validation.Date(DateLayout)),
		validation.Field(&c.Ignore, validation.Each(validation.Required)),
	)
}

// SinceTime parses Since. An empty value means no cutoff.
func (c *FilterConfig) SinceTime() time.Time {
	t, err := time.Parse(DateLayout, c.Since)
	if err != nil {
		return time.Time{}
	}
	return t
}

// LinksConfig holds the link namespace base URLs. Every empty namespace is
// derived from TracURL, except docs which must be given explicitly.
type LinksConfig struct {
	TracURL    string `yaml:"trac_url"`
	DocsURL    string `yaml:"docs_url"`
	LogURL     string `yaml:"log_url"`
	TicketURL  string `yaml:"ticket_url"`
	ReportURL  string `yaml:"report_url"`
	WikiURL    string `yaml:"wiki_url"`
	BrowserURL string `yaml:"browser_url"`
}

// Namespaces resolves the base URLs used when rewriting links.
func (c *LinksConfig) Namespaces() markup.Namespaces {
	base := strings.TrimRight(c.TracURL, "/")
	pick := func(explicit, suffix string) string {
		if explicit != "" {
			return strings.TrimRight(explicit, "/")
		}
		if base == "" {
			return ""
		}
		return base + "/" + suffix
	}
	return markup.Namespaces{
		Ticket:  pick(c.TicketURL, "ticket"),
		Report:  pick(c.ReportURL, "report"),
		Wiki:    pick(c.WikiURL, "wiki"),
		Browser: pick(c.BrowserURL, "browser"),
		Docs:    strings.TrimRight(c.DocsURL, "/"),
		Log:     pick(c.LogURL, "log"),
	}
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TracURL, is.URL),
		validation.Field(&c.DocsURL, validation.Required, is.URL),
	); err != nil {
		return err
	}
	ns := c.Namespaces()
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("links: %w", err)
	}
	return nil
}

// StateConfig holds the migration ledger location.
type StateConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the state configuration.
func (c *StateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MigrateConfig tunes migration runs. With Watch set, the migrate command
// keeps running and migrates again whenever the Trac database changes.
type MigrateConfig struct {
	Workers int  `yaml:"workers"`
	Force   bool `yaml:"force"`
	Watch   bool `yaml:"watch"`
}

// Validate validates the migrate configuration.
func (c *MigrateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
// Trac location and link bases have no usable default.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Output: OutputConfig{
			WikiDir:        "./wikis",
			AttachmentsDir: "./wikis/Attachments",
			AttachmentsURL: "/Attachments",
			Extension:      "md",
		},
		Filter: FilterConfig{
			Since: "2004-02-23",
		},
		State: StateConfig{
			Path: "./tracmark.db",
		},
		Migrate: MigrateConfig{
			Workers: 4,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
