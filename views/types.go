package views

import (
	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
	"github.com/eringen/postpage/portabletext"
)

// SiteConfig holds the site-wide settings the templates need.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	DateLayout  string // Go time layout for post dates (default "January 2, 2006")
}

// PageMeta carries per-page SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// ImageURLFunc resolves an image reference to a URL. Width 0 means original size.
type ImageURLFunc func(ref string, width int) string

// PageData is everything PostPage renders. Post is read-only; the comment
// fields belong to the current request only.
type PageData struct {
	Site      SiteConfig
	Post      content.Post
	Body      *portabletext.Renderer
	ImageURL  ImageURLFunc
	CSRFToken string

	State  comments.State
	Form   comments.Form
	Errors comments.FieldErrors
	Notice string
}
