package views

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

func esc(s string) string {
	return templ.EscapeString(s)
}

// Layout wraps a page body in the document shell.
func Layout(site SiteConfig, meta PageMeta, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		title := site.Name
		if meta.Title != "" {
			title = meta.Title + " | " + site.Name
		}
		description := meta.Description
		if description == "" {
			description = site.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		buf.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"/>`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
		buf.WriteString(`<title>` + esc(title) + `</title>`)
		if description != "" {
			buf.WriteString(`<meta name="description" content="` + esc(description) + `"/>`)
			buf.WriteString(`<meta property="og:description" content="` + esc(description) + `"/>`)
		}
		buf.WriteString(`<meta property="og:title" content="` + esc(title) + `"/>`)
		buf.WriteString(`<meta property="og:type" content="` + esc(ogType) + `"/>`)
		if meta.URL != "" {
			buf.WriteString(`<link rel="canonical" href="` + esc(meta.URL) + `"/>`)
			buf.WriteString(`<meta property="og:url" content="` + esc(meta.URL) + `"/>`)
		}
		if meta.Image != "" {
			buf.WriteString(`<meta property="og:image" content="` + esc(meta.Image) + `"/>`)
		}
		if meta.JSONLD != "" {
			// json.Marshal escapes <, > and & so the payload cannot close the script element.
			buf.WriteString(`<script type="application/ld+json">` + meta.JSONLD + `</script>`)
		}
		buf.WriteString(`<link rel="stylesheet" href="/public/styles.css"/>`)
		buf.WriteString(`<script src="/public/comment.js" defer></script>`)
		buf.WriteString(`</head><body class="bg-white text-ink">`)
		buf.WriteString(`<header class="max-w-7xl mx-auto p-5"><a href="/" class="font-bold">` + esc(site.Name) + `</a></header>`)
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
