package portabletext

import (
	"bytes"
	"html"
)

// Node is what a Serializer receives: the resolved tag plus already rendered children.
type Node struct {
	Tag      string
	Children string // rendered inner HTML
	Href     string // escaped, for link annotations
	Block    *Block // nil for marks and list wrappers
}

// Serializer writes the HTML for one node.
type Serializer func(buf *bytes.Buffer, n Node)

// Serializers returns a fresh copy of the fixed serializer table.
func Serializers() map[string]Serializer {
	return map[string]Serializer{
		"h1": func(buf *bytes.Buffer, n Node) {
			wrap(buf, `<h1 class="text-2xl font-bold my-5">`, n.Children, "</h1>")
		},
		"h2": func(buf *bytes.Buffer, n Node) {
			wrap(buf, `<h2 class="text-xl font-bold my-5">`, n.Children, "</h2>")
		},
		"li": func(buf *bytes.Buffer, n Node) {
			wrap(buf, `<li class="ml-4 list-disc">`, n.Children, "</li>")
		},
		"link": func(buf *bytes.Buffer, n Node) {
			wrap(buf, `<a href="`+n.Href+`" class="text-blue-500 hover:underline">`, n.Children, "</a>")
		},
	}
}

func (r *Renderer) serialize(buf *bytes.Buffer, n Node) {
	if s, ok := r.serializers[n.Tag]; ok {
		s(buf, n)
		return
	}
	r.serializeDefault(buf, n)
}

// serializeDefault handles every tag that has no entry in the table.
func (r *Renderer) serializeDefault(buf *bytes.Buffer, n Node) {
	switch n.Tag {
	case "normal":
		wrap(buf, "<p>", n.Children, "</p>")
	case "h3", "h4", "h5", "h6":
		wrap(buf, "<"+n.Tag+">", n.Children, "</"+n.Tag+">")
	case "blockquote":
		wrap(buf, "<blockquote>", n.Children, "</blockquote>")
	case "bullet":
		wrap(buf, "<ul>", n.Children, "</ul>")
	case "number":
		wrap(buf, "<ol>", n.Children, "</ol>")
	case "strong":
		wrap(buf, "<strong>", n.Children, "</strong>")
	case "em":
		wrap(buf, "<em>", n.Children, "</em>")
	case "underline":
		wrap(buf, "<u>", n.Children, "</u>")
	case "strike-through":
		wrap(buf, "<s>", n.Children, "</s>")
	case "code":
		if n.Block != nil {
			r.codeBlock(buf, n.Block)
			return
		}
		wrap(buf, "<code>", n.Children, "</code>")
	case "image":
		if n.Block != nil {
			r.image(buf, n.Block)
		}
	default:
		if n.Block == nil {
			// unknown mark
			buf.WriteString(n.Children)
			return
		}
		if n.Children != "" {
			wrap(buf, "<p>", n.Children, "</p>")
		}
	}
}

func (r *Renderer) codeBlock(buf *bytes.Buffer, b *Block) {
	if b.Language != "" {
		lang := html.EscapeString(b.Language)
		buf.WriteString(`<pre class="code-block"><code class="language-` + lang + `">`)
	} else {
		buf.WriteString(`<pre class="code-block"><code>`)
	}
	buf.WriteString(html.EscapeString(b.Code))
	buf.WriteString("</code></pre>")
}

func (r *Renderer) image(buf *bytes.Buffer, b *Block) {
	if b.Asset == nil {
		return
	}
	src := SafeURL(r.imageURL(b.Asset.Ref))
	if src == "" {
		return
	}
	buf.WriteString(`<figure><img src="` + src + `" alt="` + html.EscapeString(b.Alt) + `" loading="lazy" decoding="async"/></figure>`)
}

func wrap(buf *bytes.Buffer, open, children, close string) {
	buf.WriteString(open)
	buf.WriteString(children)
	buf.WriteString(close)
}
