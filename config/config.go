package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/aluiziolira/go-wayback-appstats/parser"
)

// ErrInvalidCatalog is wrapped by every app catalog validation failure.
var ErrInvalidCatalog = errors.New("invalid app catalog")

// Config holds scraper configuration.
type Config struct {
	Apps             []models.AppEntry `mapstructure:"apps"`
	SearchURL        string            `mapstructure:"search_url"`
	ArchiveURL       string            `mapstructure:"archive_url"`
	OutputDir        string            `mapstructure:"output_dir"`
	OutputFormat     string            `mapstructure:"output_format"` // json, csv, or dual
	DatabasePath     string            `mapstructure:"database_path"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	FallbackCharset  string            `mapstructure:"fallback_charset"`
	DetectCharset    bool              `mapstructure:"detect_charset"`
	MaxBodySize      int               `mapstructure:"max_body_size"`
	UserAgent        string            `mapstructure:"user_agent"`
	RespectRobotsTxt bool              `mapstructure:"respect_robots_txt"`
	IndexCacheSize   int               `mapstructure:"index_cache_size"`
	UpdatedPattern   string            `mapstructure:"updated_pattern"`
	SizePattern      string            `mapstructure:"size_pattern"`
	MetricsAddr      string            `mapstructure:"metrics_addr"`
	Verbose          bool              `mapstructure:"verbose"`
}

// DefaultConfig returns the defaults for the public web archive.
func DefaultConfig() *Config {
	return &Config{
		Apps:             DefaultApps(),
		SearchURL:        "https://web.archive.org/cdx/search/cdx",
		ArchiveURL:       "https://web.archive.org/web/",
		OutputDir:        "./apps_stats",
		OutputFormat:     "json",
		DatabasePath:     "",
		Timeout:          30 * time.Second,
		FallbackCharset:  "utf-8",
		DetectCharset:    false,
		MaxBodySize:      10 * 1024 * 1024,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,
		IndexCacheSize:   32,
		UpdatedPattern:   parser.DefaultUpdatedPattern,
		SizePattern:      parser.DefaultSizePattern,
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// DefaultApps returns the built-in catalog of well-known apps.
func DefaultApps() []models.AppEntry {
	return []models.AppEntry{
		{Name: "Facebook", URL: "https://itunes.apple.com/us/app/facebook/id284882215"},
		{Name: "Messenger", URL: "https://itunes.apple.com/us/app/messenger/id454638411"},
		{Name: "Youtube", URL: "https://itunes.apple.com/us/app/youtube-watch-videos-music-and-live-streams/id544007664?mt=8"},
		{Name: "Instagram", URL: "https://itunes.apple.com/us/app/instagram/id389801252"},
		{Name: "Skype", URL: "https://itunes.apple.com/us/app/skype-for-iphone/id304878510?mt=8"},
		{Name: "WhatsApp Messenger", URL: "https://itunes.apple.com/us/app/whatsapp-messenger/id310633997"},
		{Name: "Google Maps", URL: "https://itunes.apple.com/us/app/google-maps-navigation-transit/id585027354?mt=8"},
		{Name: "Twitter", URL: "https://itunes.apple.com/us/app/twitter/id333903271"},
		{Name: "Netflix", URL: "https://itunes.apple.com/us/app/netflix/id363590051"},
		{Name: "Spotify Music", URL: "https://itunes.apple.com/us/app/spotify-music/id324684580"},
		{Name: "Snapchat", URL: "https://itunes.apple.com/us/app/snapchat/id447188370"},
		{Name: "Gmail", URL: "https://itunes.apple.com/us/app/gmail-email-by-google-secure-fast-organized/id422689480?mt=8"},
		{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"},
		{Name: "Amazon Shopping", URL: "https://itunes.apple.com/us/app/amazon-shopping-made-easy/id297606951?mt=8"},
		{Name: "Pinterest", URL: "https://itunes.apple.com/us/app/pinterest/id429047995"},
		{Name: "Google Chrome", URL: "https://itunes.apple.com/us/app/google-chrome-the-fast-and-secure-web-browser/id535886823?mt=8"},
		{Name: "Firefox", URL: "https://itunes.apple.com/us/app/firefox-web-browser/id989804926?mt=8"},
		{Name: "Yelp", URL: "https://itunes.apple.com/us/app/yelp-nearby-restaurants-shopping-services/id284910350?mt=8"},
		{Name: "Microsoft Outlook", URL: "https://itunes.apple.com/us/app/microsoft-outlook-email-and-calendar/id951937596?mt=8"},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := ValidateApps(c.Apps); err != nil {
		return err
	}
	if err := validateEndpoint("search URL", c.SearchURL); err != nil {
		return err
	}
	if err := validateEndpoint("archive URL", c.ArchiveURL); err != nil {
		return err
	}
	if !strings.HasSuffix(c.ArchiveURL, "/") {
		return fmt.Errorf("archive URL must end with a slash")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if strings.TrimSpace(c.FallbackCharset) == "" {
		return fmt.Errorf("fallback charset cannot be empty")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.IndexCacheSize < 0 {
		return fmt.Errorf("index cache size cannot be negative")
	}
	if _, err := parser.NewExtractor(c.UpdatedPattern, c.SizePattern); err != nil {
		return err
	}
	return nil
}

// SelectApps narrows the catalog to the named apps, preserving catalog order.
func (c *Config) SelectApps(names []string) error {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = false
	}
	selected := make([]models.AppEntry, 0, len(names))
	for _, app := range c.Apps {
		if _, ok := wanted[app.Name]; ok {
			wanted[app.Name] = true
			selected = append(selected, app)
		}
	}
	for _, name := range names {
		if !wanted[name] {
			return fmt.Errorf("unknown app %q", name)
		}
	}
	c.Apps = selected
	return nil
}

// ValidateApps checks the catalog entries one by one. Two entries run
// together in a hand-edited catalog show up as a URL holding a second
// scheme, quotes, or whitespace, and are rejected with the offending value.
func ValidateApps(apps []models.AppEntry) error {
	if len(apps) == 0 {
		return fmt.Errorf("%w: no apps configured", ErrInvalidCatalog)
	}

	seen := make(map[string]struct{}, len(apps))
	for i, app := range apps {
		name := strings.TrimSpace(app.Name)
		if name == "" {
			return fmt.Errorf("%w: entry %d has an empty name", ErrInvalidCatalog, i)
		}
		if name != app.Name {
			return fmt.Errorf("%w: app %q has surrounding whitespace", ErrInvalidCatalog, app.Name)
		}
		if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
			return fmt.Errorf("%w: app %q cannot be used as a file name", ErrInvalidCatalog, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: app %q is listed twice", ErrInvalidCatalog, name)
		}
		seen[name] = struct{}{}

		if strings.Count(app.URL, "://") != 1 || strings.ContainsAny(app.URL, "\"' \t\r\n") {
			return fmt.Errorf("%w: app %q has url %q that looks like two entries run together", ErrInvalidCatalog, name, app.URL)
		}
		parsed, err := url.Parse(app.URL)
		if err != nil {
			return fmt.Errorf("%w: app %q has an invalid url: %v", ErrInvalidCatalog, name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%w: app %q url must be http or https", ErrInvalidCatalog, name)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%w: app %q url must include a host", ErrInvalidCatalog, name)
		}
	}
	return nil
}

func validateEndpoint(label, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", label, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", label)
	}
	return nil
}
