package internal

import (
	"fmt"
	"log/slog"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/markup"
	"github.com/starford/vellum/internal/render"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	Cache   CacheConfig       `yaml:"cache"`
	Convert ConvertConfig     `yaml:"convert"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Convert.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// VaultConfig holds the path to the document vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CacheConfig controls the persistent conversion cache.
//
// SizeLimit keeps renderings of that many bytes or more out of the cache
// (zero disables the limit). ContentTypes restricts caching to the listed
// target types; extensions such as "html" are accepted.
type CacheConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Path         string   `yaml:"path"`
	SizeLimit    int64    `yaml:"size_limit"`
	ContentTypes []string `yaml:"content_types"`
	Watch        bool     `yaml:"watch"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.SizeLimit, validation.Min(int64(0))),
	)
}

// Types resolves ContentTypes to content type names.
func (c *CacheConfig) Types() []string {
	out := make([]string, 0, len(c.ContentTypes))
	for _, t := range c.ContentTypes {
		if ct := contenttype.ForHint(t); ct != "" {
			out = append(out, ct)
		}
	}
	return out
}

// ConvertConfig holds the defaults applied to conversions served over HTTP.
type ConvertConfig struct {
	Server              string `yaml:"server"`
	ViewPath            string `yaml:"view_path"`
	DownloadPath        string `yaml:"download_path"`
	MaxIncludeDepth     int    `yaml:"max_include_depth"`
	AnnotationDelimiter string `yaml:"annotation_delimiter"`
}

// Validate validates the convert configuration.
func (c *ConvertConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ViewPath, validation.Required),
		validation.Field(&c.DownloadPath, validation.Required),
		validation.Field(&c.MaxIncludeDepth, validation.Min(0)),
		validation.Field(&c.AnnotationDelimiter, validation.Length(0, 4)),
	)
}

// Properties returns the conversion properties that differ from the
// converter defaults. The result is nil when nothing differs, which keeps
// renderings cacheable.
func (c *ConvertConfig) Properties() convert.Properties {
	var props convert.Properties
	set := func(key, value, def string) {
		if value == "" || value == def {
			return
		}
		if props == nil {
			props = convert.Properties{}
		}
		props[key] = value
	}
	set(render.PropServer, c.Server, "")
	set(render.PropViewPath, c.ViewPath, render.DefaultViewPath)
	set(render.PropDownloadPath, c.DownloadPath, render.DefaultDownloadPath)
	set(markup.PropAnnotationDelimiter, c.AnnotationDelimiter, markup.DefaultAnnotationDelimiter)
	if c.MaxIncludeDepth > 0 {
		set(exchange.PropMaxIncludeDepth, strconv.Itoa(c.MaxIncludeDepth), "")
	}
	return props
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "./vellum.db",
			Watch:   true,
		},
		Convert: ConvertConfig{
			ViewPath:     render.DefaultViewPath,
			DownloadPath: render.DefaultDownloadPath,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
