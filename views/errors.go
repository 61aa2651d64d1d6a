package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func message(heading, text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<main class="max-w-3xl mx-auto p-5 text-center"><h1 class="text-3xl font-bold my-10">`+
			esc(heading)+`</h1><p class="text-gray-500">`+esc(text)+`</p></main>`)
		return err
	})
}

// NotFound renders the 404 page.
func NotFound(site SiteConfig) templ.Component {
	return Layout(site, PageMeta{Title: "Not found"}, message("Page not found", "The post you are looking for does not exist."))
}

// ServerError renders the 500 page.
func ServerError(site SiteConfig) templ.Component {
	return Layout(site, PageMeta{Title: "Error"}, message("Something went wrong", "Please try again later."))
}
