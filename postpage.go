// Package postpage serves a single blog post page per slug from a content
// source and accepts reader comments into a pending-moderation queue.
//
// Pages are pre-built from every known slug at start, built on demand for
// unknown slugs, and revalidated in the background once they go stale.
package postpage

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/postpage/cms"
	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
	"github.com/eringen/postpage/portabletext"
	"github.com/eringen/postpage/views"
)

// App wires the content source, page cache, comment flow and HTTP server.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Source content.Source
	Sink   content.CommentSink
	Pages  *PageCache
	Poster comments.Poster
	Logger *slog.Logger

	renderer     *portabletext.Renderer
	imageURL     views.ImageURLFunc
	limiter      *RateLimiter
	store        *content.Store
	snapshots    *PageStore
	customRoutes []func(*App)
	staticDir    string
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return a
}

// OpenSource opens the configured content source unless one was injected.
func (a *App) OpenSource() error {
	if a.Source != nil {
		return nil
	}
	switch a.Config.ContentSource {
	case SourceCMS:
		if a.Config.CMSProjectID == "" {
			return fmt.Errorf("postpage: CMSProjectID is required for the cms source")
		}
		client := cms.NewClient(cms.Config{
			ProjectID:  a.Config.CMSProjectID,
			Dataset:    a.Config.CMSDataset,
			APIVersion: a.Config.CMSAPIVersion,
			Token:      a.Config.CMSToken,
			UseCDN:     a.Config.CMSUseCDN,
		})
		src := content.NewCMSSource(client)
		a.Source = src
		if a.Sink == nil {
			a.Sink = src
		}
	case SourceSQLite:
		store, err := content.NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("postpage: init store: %w", err)
		}
		a.store = store
		a.Source = store
		if a.Sink == nil {
			a.Sink = store
		}
	default:
		return fmt.Errorf("postpage: unknown content source %q", a.Config.ContentSource)
	}
	return nil
}

// Init opens the content source and page cache, pre-builds known pages and
// registers middleware and routes. Start calls it; tests call it directly.
func (a *App) Init(ctx context.Context) error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("postpage: SessionSecret is required")
	}

	if err := a.OpenSource(); err != nil {
		return err
	}

	if a.Config.PageCacheDir != "" {
		snapshots, err := OpenPageStore(a.Config.PageCacheDir)
		if err != nil {
			return fmt.Errorf("postpage: init page cache: %w", err)
		}
		a.snapshots = snapshots
	}
	a.Pages = NewPageCache(a.Source, a.Config.RevalidateAfter, a.snapshots, a.Logger)

	if n, err := a.Pages.Warm(); err != nil {
		a.Logger.Warn("page snapshots unreadable", "error", err)
	} else if n > 0 {
		a.Logger.Info("restored page snapshots", "pages", n)
	}
	if !a.Config.SkipPrebuild {
		n, err := a.Pages.Prebuild(ctx)
		if err != nil {
			return fmt.Errorf("postpage: %w", err)
		}
		a.Logger.Info("pre-built pages", "pages", n)
	}

	a.imageURL = a.newImageURLFunc()
	a.renderer = portabletext.New(portabletext.Options{
		ProjectID: a.Config.CMSProjectID,
		Dataset:   a.Config.CMSDataset,
		ImageURL:  func(ref string) string { return a.imageURL(ref, 0) },
	})

	if a.Poster == nil {
		var opts []comments.SubmitterOption
		if a.Config.CommentIntakeURL == a.Config.selfIntakeURL() {
			opts = append(opts, comments.WithHeader(intakeTokenHeader, a.intakeToken()))
		}
		a.Poster = comments.NewSubmitter(a.Config.CommentIntakeURL, nil, opts...)
	}
	a.limiter = NewRateLimiter(a.Config.IntakeLimit, a.Config.IntakeWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and starts the server.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/comment.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/assets/:file", a.handleAsset)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/post/:slug/", a.handlePost)
	e.POST("/post/:slug/comment/", a.handleComment)

	e.POST("/api/createComment", a.handleCreateComment)
}

// Close waits for background refreshes and releases resources.
func (a *App) Close() error {
	if a.Pages != nil {
		a.Pages.Wait()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.Logger.Error("close page snapshots", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Error("close content store", "error", err)
		}
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("postpage: required environment variable %s is not set", key)
	}
	return v
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}
