package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Sequence confirmation modes.
const (
	ConfirmAlways = "always"
	ConfirmNever  = "never"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Project    ProjectConfig     `yaml:"project"`
	Probe      ProbeConfig       `yaml:"probe"`
	Thumbnails ThumbnailConfig   `yaml:"thumbnails"`
	Sequences  SequenceConfig    `yaml:"sequences"`
	Watch      WatchConfig       `yaml:"watch"`
	View       ViewConfig        `yaml:"view"`
	MCP        MCPConfig         `yaml:"mcp"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Project, &c.Probe, &c.Thumbnails, &c.Sequences, &c.Watch, &c.View, &c.Auth,
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

// ProjectConfig locates the project document. An empty path runs without
// persistence.
type ProjectConfig struct {
	Path     string        `yaml:"path"`
	Autosave time.Duration `yaml:"autosave"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Autosave, validation.Min(time.Duration(0))),
	)
}

// ProbeConfig configures the ffprobe adapter.
type ProbeConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the probe configuration.
func (c *ProbeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ThumbnailConfig configures the thumbnail service and its client.
//
// Listen starts the built-in service on that address; leave it empty to use
// an external service at URL. URL defaults to http://<Listen>.
type ThumbnailConfig struct {
	Listen        string        `yaml:"listen"`
	URL           string        `yaml:"url"`
	CacheDir      string        `yaml:"cache_dir"`
	FFmpeg        string        `yaml:"ffmpeg"`
	Width         int           `yaml:"width"`
	Timeout       time.Duration `yaml:"timeout"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// BaseURL returns the address the client talks to.
func (c *ThumbnailConfig) BaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return "http://" + c.Listen
}

// Validate validates the thumbnail configuration.
func (c *ThumbnailConfig) Validate() error {
	if c.Listen == "" && c.URL == "" {
		return errors.New("thumbnails: one of listen or url is required")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheDir, validation.When(c.Listen != "", validation.Required)),
		validation.Field(&c.FFmpeg, validation.When(c.Listen != "", validation.Required)),
		validation.Field(&c.Width, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.PruneInterval, validation.Min(time.Duration(0))),
	)
}

// SequenceConfig decides how detected image sequences are confirmed when no
// one is around to answer.
type SequenceConfig struct {
	Confirm string `yaml:"confirm"`
}

// Validate validates the sequence configuration.
func (c *SequenceConfig) Validate() error {
	if c.Confirm == "" {
		c.Confirm = ConfirmAlways
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Confirm, validation.In(ConfirmAlways, ConfirmNever)),
	)
}

// WatchConfig lists folders whose new files are imported automatically.
type WatchConfig struct {
	Folders      []string      `yaml:"folders"`
	Debounce     time.Duration `yaml:"debounce"`
	Extensions   []string      `yaml:"extensions"`
	ScanExisting bool          `yaml:"scan_existing"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Folders, validation.Each(validation.Required)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// ViewConfig configures the row projection.
type ViewConfig struct {
	Scheme   string `yaml:"scheme"`
	Language string `yaml:"language"`
}

// Tag returns the collation language.
func (c *ViewConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// Validate validates the view configuration.
func (c *ViewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Scheme, validation.Required),
		validation.Field(&c.Language, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			_, err := language.Parse(s)
			return err
		})),
	)
}

// MCPConfig configures the MCP server. Media fetched by the fetch_media tool
// lands in InboxDir; an empty value disables the tool.
type MCPConfig struct {
	InboxDir string `yaml:"inbox_dir"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
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
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Project: ProjectConfig{
			Path:     "./project.mediabin",
			Autosave: time.Minute,
		},
		Probe: ProbeConfig{
			Binary:  "ffprobe",
			Timeout: 30 * time.Second,
		},
		Thumbnails: ThumbnailConfig{
			Listen:        "127.0.0.1:8089",
			CacheDir:      "./thumbnails",
			FFmpeg:        "ffmpeg",
			Width:         320,
			Timeout:       10 * time.Second,
			PruneInterval: 10 * time.Minute,
		},
		Sequences: SequenceConfig{
			Confirm: ConfirmAlways,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		View: ViewConfig{
			Scheme:   "mediabin",
			Language: "en",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
