package postpage

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
)

// Content sources selectable through SiteConfig.ContentSource.
const (
	SourceSQLite = "sqlite"
	SourceCMS    = "cms"
)

// SiteConfig holds all configuration for a post page site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for meta tags

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path for the local source (default "data/content.db")

	ContentSource string // "sqlite" (default) or "cms"
	CMSProjectID  string
	CMSDataset    string // default "production"
	CMSAPIVersion string
	CMSToken      string // Needed for comment writes against the hosted API
	CMSUseCDN     bool

	AssetDir string // Local image assets served under /assets/ (default "data/assets")

	RevalidateAfter time.Duration // Page freshness window (default 12h)
	PageCacheDir    string        // Badger snapshot directory; empty disables snapshots
	SkipPrebuild    bool          // Build every page on demand

	CommentIntakeURL string        // Default: URL without "www." + "/api/createComment"
	IntakeLimit      int           // Comments per IP per window (default 5)
	IntakeWindow     time.Duration // default 1min

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	DateLayout string // Post date layout (default "January 2, 2006")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/content.db"
	}
	if c.ContentSource == "" {
		c.ContentSource = SourceSQLite
	}
	if c.CMSDataset == "" {
		c.CMSDataset = "production"
	}
	if c.AssetDir == "" {
		c.AssetDir = "data/assets"
	}
	if c.RevalidateAfter == 0 {
		c.RevalidateAfter = 12 * time.Hour
	}
	if c.CommentIntakeURL == "" {
		c.CommentIntakeURL = c.selfIntakeURL()
	}
	if c.IntakeLimit == 0 {
		c.IntakeLimit = 5
	}
	if c.IntakeWindow == 0 {
		c.IntakeWindow = time.Minute
	}
	if c.DateLayout == "" {
		c.DateLayout = "January 2, 2006"
	}
}

// selfIntakeURL is this site's own intake endpoint. It uses the non-www host
// because NonWWWRedirect would answer a www POST with a 301, which the HTTP
// client follows as a GET.
func (c *SiteConfig) selfIntakeURL() string {
	base := strings.TrimRight(c.URL, "/")
	if u, err := url.Parse(base); err == nil && strings.HasPrefix(u.Host, "www.") {
		u.Host = strings.TrimPrefix(u.Host, "www.")
		base = u.String()
	}
	return base + "/api/createComment"
}

// ConfigFromEnv reads a SiteConfig from POSTPAGE_* environment variables.
func ConfigFromEnv() SiteConfig {
	return SiteConfig{
		Name:             EnvOr("POSTPAGE_SITE_NAME", ""),
		URL:              EnvOr("POSTPAGE_SITE_URL", ""),
		Description:      EnvOr("POSTPAGE_SITE_DESCRIPTION", ""),
		Addr:             EnvOr("POSTPAGE_ADDR", ""),
		DatabasePath:     EnvOr("POSTPAGE_DATABASE_PATH", ""),
		ContentSource:    EnvOr("POSTPAGE_CONTENT_SOURCE", ""),
		CMSProjectID:     EnvOr("POSTPAGE_CMS_PROJECT_ID", ""),
		CMSDataset:       EnvOr("POSTPAGE_CMS_DATASET", ""),
		CMSAPIVersion:    EnvOr("POSTPAGE_CMS_API_VERSION", ""),
		CMSToken:         EnvOr("POSTPAGE_CMS_TOKEN", ""),
		CMSUseCDN:        envBool("POSTPAGE_CMS_USE_CDN"),
		AssetDir:         EnvOr("POSTPAGE_ASSET_DIR", ""),
		RevalidateAfter:  envDuration("POSTPAGE_REVALIDATE_AFTER"),
		PageCacheDir:     EnvOr("POSTPAGE_PAGE_CACHE_DIR", ""),
		SkipPrebuild:     envBool("POSTPAGE_SKIP_PREBUILD"),
		CommentIntakeURL: EnvOr("POSTPAGE_COMMENT_INTAKE_URL", ""),
		SessionSecret:    os.Getenv("POSTPAGE_SESSION_SECRET"),
		CookieSecure:     envBool("POSTPAGE_COOKIE_SECURE"),
		DateLayout:       EnvOr("POSTPAGE_DATE_LAYOUT", ""),
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the configured content source. If src also implements
// content.CommentSink it receives intake comments.
func WithSource(src content.Source) Option {
	return func(a *App) {
		a.Source = src
		if sink, ok := src.(content.CommentSink); ok && a.Sink == nil {
			a.Sink = sink
		}
	}
}

// WithCommentSink sets where the intake endpoint writes pending comments.
func WithCommentSink(sink content.CommentSink) Option {
	return func(a *App) {
		a.Sink = sink
	}
}

// WithCommentPoster replaces the HTTP submitter used by the comment form.
func WithCommentPoster(p comments.Poster) Option {
	return func(a *App) {
		a.Poster = p
	}
}

// WithLogger sets the structured logger used outside request handling.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
