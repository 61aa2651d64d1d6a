package views

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/postpage/comments"
	"github.com/eringen/postpage/content"
)

const (
	ThankYouHeading = "Thank you for submitting your comment!"
	ThankYouText    = "Once approved, it will appear below"
)

// PostPage renders a full post page.
func PostPage(d PageData) templ.Component {
	banner := d.imageURL(d.Post.MainImage.Ref, 0)
	meta := PageMeta{
		Title:       d.Post.Title,
		Description: d.Post.Description,
		URL:         PostURL(d.Site, d.Post.Slug),
		OGType:      "article",
		Image:       banner,
		JSONLD:      BlogPostingJsonLD(d.Site, d.Post, banner),
	}
	return Layout(d.Site, meta, PostBody(d))
}

// PostBody renders the post article, the comment form or thank-you panel and
// the approved comments, without the document shell.
func PostBody(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		p := d.Post

		buf.WriteString(`<main>`)
		if src := d.imageURL(p.MainImage.Ref, 0); src != "" {
			buf.WriteString(`<img class="w-full h-40 object-cover" src="` + esc(src) + `" alt="` + esc(p.MainImage.Alt) + `"/>`)
		}

		buf.WriteString(`<article class="max-w-3xl mx-auto p-5">`)
		buf.WriteString(`<h1 class="text-3xl mt-10 mb-3">` + esc(p.Title) + `</h1>`)
		if p.Description != "" {
			buf.WriteString(`<h2 class="text-xl font-light text-gray-500 mb-2">` + esc(p.Description) + `</h2>`)
		}
		buf.WriteString(`<div class="flex items-center space-x-2">`)
		if src := d.imageURL(p.Author.Image.Ref, 80); src != "" {
			buf.WriteString(`<img class="h-10 w-10 rounded-full" src="` + esc(src) + `" alt=""/>`)
		}
		buf.WriteString(`<p class="font-extralight text-sm">Blog post by <span class="text-green-600">` + esc(p.Author.Name) + `</span>`)
		if date := FormatDate(p.CreatedAt, d.Site.DateLayout); date != "" {
			buf.WriteString(` - Published at <time datetime="` + p.CreatedAt.UTC().Format("2006-01-02") + `">` + esc(date) + `</time>`)
		}
		buf.WriteString(`</p></div><div class="mt-10">`)
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		buf.Reset()

		if d.Body != nil {
			if err := d.Body.Component(p.Body).Render(ctx, w); err != nil {
				return err
			}
		}

		buf.WriteString(`</div></article>`)
		buf.WriteString(`<hr class="max-w-lg my-5 mx-auto border border-yellow-500"/>`)
		if d.State == comments.Submitted {
			writeThankYou(&buf)
		} else {
			d.writeForm(&buf)
		}
		writeComments(&buf, p.Comments)
		buf.WriteString(`</main>`)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func (d PageData) imageURL(ref string, width int) string {
	if ref == "" || d.ImageURL == nil {
		return ""
	}
	return d.ImageURL(ref, width)
}

func writeThankYou(buf *bytes.Buffer) {
	buf.WriteString(`<div id="comment-panel" class="flex flex-col p-10 my-10 bg-yellow-500 text-white max-w-2xl mx-auto">`)
	buf.WriteString(`<h3 class="text-3xl font-bold">` + ThankYouHeading + `</h3>`)
	buf.WriteString(`<p>` + ThankYouText + `</p></div>`)
}

func (d PageData) writeForm(buf *bytes.Buffer) {
	action := "/post/" + url.PathEscape(d.Post.Slug) + "/comment/"
	buf.WriteString(`<form id="comment-panel" class="flex flex-col p-5 max-w-2xl mx-auto mb-10" method="post" action="` + esc(action) + `" data-comment-form>`)
	buf.WriteString(`<h3 class="text-sm text-yellow-500">Enjoyed this article?</h3>`)
	buf.WriteString(`<h4 class="text-3xl font-bold">Leave a comment below!</h4>`)
	buf.WriteString(`<hr class="py-3 mt-2"/>`)
	if d.Notice != "" {
		buf.WriteString(`<p class="notice text-red-500 mb-3" role="alert">` + esc(d.Notice) + `</p>`)
	}
	buf.WriteString(`<input type="hidden" name="_csrf" value="` + esc(d.CSRFToken) + `"/>`)
	buf.WriteString(`<input type="hidden" name="_id" value="` + esc(d.Post.ID) + `"/>`)

	writeField(buf, "Name", `<input class="shadow border rounded py-2 px-3 form-input mt-1 block w-full" type="text" name="name" placeholder="John Appleseed" value="`+esc(d.Form.Name)+`"/>`)
	writeField(buf, "Email", `<input class="shadow border rounded py-2 px-3 form-input mt-1 block w-full" type="email" name="email" placeholder="john@example.com" value="`+esc(d.Form.Email)+`"/>`)
	writeField(buf, "Comment", `<textarea class="shadow border rounded py-2 px-3 form-textarea mt-1 block w-full" name="comment" rows="8" placeholder="Your comment">`+esc(d.Form.Comment)+`</textarea>`)

	buf.WriteString(`<div class="flex flex-col p-5" data-errors>`)
	for _, key := range []string{"_id", "name", "email", "comment"} {
		if msg, ok := d.Errors[key]; ok {
			buf.WriteString(`<span class="text-red-500" data-field="` + esc(key) + `">- ` + esc(msg) + `</span>`)
		}
	}
	buf.WriteString(`</div>`)
	buf.WriteString(`<input type="submit" value="Submit" class="shadow bg-yellow-500 hover:bg-yellow-400 text-white font-bold py-2 px-4 rounded cursor-pointer"/>`)
	buf.WriteString(`</form>`)
}

func writeField(buf *bytes.Buffer, label, control string) {
	buf.WriteString(`<label class="block mb-5"><span class="text-gray-700">` + label + `</span>` + control + `</label>`)
}

// Comment emails are never written here.
func writeComments(buf *bytes.Buffer, list []content.Comment) {
	buf.WriteString(`<section id="comments" class="flex flex-col p-10 my-10 max-w-2xl mx-auto shadow-yellow-500 shadow space-y-2">`)
	buf.WriteString(`<h3 class="text-4xl">Comments</h3><hr class="pb-2"/>`)
	for _, c := range list {
		if !c.Approved {
			continue
		}
		buf.WriteString(`<div><p><span class="text-yellow-500">` + esc(c.Name) + `:</span> ` + esc(c.Text) + `</p></div>`)
	}
	buf.WriteString(`</section>`)
}
