package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eringen/postpage"
	"github.com/eringen/postpage/content"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve()
	case "build":
		build()
	case "slugs":
		listSlugs()
	case "seed":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: postpage seed <file.json>")
			os.Exit(1)
		}
		if err := seed(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("postpage %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`postpage - blog post pages with moderated reader comments

Usage:
  postpage <command> [arguments]

Commands:
  serve              Pre-build known posts and start the HTTP server
  build              Pre-build every known post into the page cache and exit
  slugs              List every known post slug
  seed <file.json>   Load posts and comments into the local SQLite source
  version            Print the postpage version
  help               Show this help message

Configuration is read from POSTPAGE_* environment variables, e.g.
  POSTPAGE_SESSION_SECRET   required for serve
  POSTPAGE_CONTENT_SOURCE   sqlite (default) or cms
  POSTPAGE_CMS_PROJECT_ID   project id for the cms source
  POSTPAGE_PAGE_CACHE_DIR   persist built pages (default for build: data/pages)`)
}

func serve() {
	cfg := postpage.ConfigFromEnv()
	cfg.SessionSecret = postpage.MustEnv("POSTPAGE_SESSION_SECRET")

	app := postpage.New(cfg)
	defer app.Close()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Echo.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// build fails on any fetch error; there is no retry.
func build() {
	cfg := postpage.ConfigFromEnv()
	if cfg.PageCacheDir == "" {
		cfg.PageCacheDir = "data/pages"
	}
	app := postpage.New(cfg)
	defer app.Close()

	if err := app.OpenSource(); err != nil {
		log.Fatal(err)
	}
	snapshots, err := postpage.OpenPageStore(app.Config.PageCacheDir)
	if err != nil {
		log.Fatal(err)
	}
	defer snapshots.Close()

	pages := postpage.NewPageCache(app.Source, app.Config.RevalidateAfter, snapshots, app.Logger)
	n, err := pages.Prebuild(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Built %d pages into %s\n", n, app.Config.PageCacheDir)
}

func listSlugs() {
	app := postpage.New(postpage.ConfigFromEnv())
	defer app.Close()

	if err := app.OpenSource(); err != nil {
		log.Fatal(err)
	}
	slugs, err := app.Source.Slugs(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range slugs {
		fmt.Println(s)
	}
}

type seedComment struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Comment   string    `json:"comment"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"_createdAt"`
}

type seedPost struct {
	content.Post
	Comments []seedComment `json:"comments"`
}

type seedFile struct {
	Posts []seedPost `json:"posts"`
}

func seed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := postpage.ConfigFromEnv()
	if cfg.ContentSource != "" && cfg.ContentSource != postpage.SourceSQLite {
		return fmt.Errorf("seed only writes to the sqlite source")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/content.db"
	}
	store, err := content.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	comments := 0
	for _, sp := range file.Posts {
		p := sp.Post
		if p.Slug == "" {
			p.Slug = postpage.Slugify(p.Title)
		}
		saved, err := store.SavePost(ctx, p)
		if err != nil {
			return err
		}
		for _, c := range sp.Comments {
			err := store.ImportComment(ctx, content.Comment{
				ID:        c.ID,
				PostID:    saved.ID,
				Name:      c.Name,
				Email:     c.Email,
				Text:      c.Comment,
				Approved:  c.Approved,
				CreatedAt: c.CreatedAt,
			})
			if err != nil {
				return err
			}
			comments++
		}
	}
	fmt.Printf("Seeded %d posts and %d comments into %s\n", len(file.Posts), comments, cfg.DatabasePath)
	return nil
}
