// Package portabletext renders Portable Text rich-text blocks to HTML as a templ component.
//
// Every block, list wrapper and span mark resolves to a tag. The tag is looked up in a fixed
// serializer table; tags missing from the table go through the default serializer, which never
// fails on input it does not recognise.
package portabletext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/postpage/cms"
)

// Block is one top-level rich-text node as stored by the content API.
type Block struct {
	Type     string    `json:"_type"`
	Key      string    `json:"_key,omitempty"`
	Style    string    `json:"style,omitempty"`
	ListItem string    `json:"listItem,omitempty"`
	Level    int       `json:"level,omitempty"`
	Children []Span    `json:"children,omitempty"`
	MarkDefs []MarkDef `json:"markDefs,omitempty"`
	Asset    *AssetRef `json:"asset,omitempty"`
	Alt      string    `json:"alt,omitempty"`
	Code     string    `json:"code,omitempty"`
	Language string    `json:"language,omitempty"`
}

// Span is an inline run of text with decorator or annotation marks.
type Span struct {
	Type  string   `json:"_type"`
	Key   string   `json:"_key,omitempty"`
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// MarkDef is an annotation referenced by key from Span.Marks.
type MarkDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href,omitempty"`
}

// AssetRef points at an uploaded asset.
type AssetRef struct {
	Ref string `json:"_ref"`
}

// Options is the serialization context injected by the caller.
type Options struct {
	ProjectID string
	Dataset   string
	// ImageURL resolves an asset reference. When nil, CDN URLs are built
	// from ProjectID and Dataset.
	ImageURL func(ref string) string
}

// Renderer turns blocks into HTML.
type Renderer struct {
	serializers map[string]Serializer
	imageURL    func(ref string) string
}

// New creates a Renderer using the fixed serializer table.
func New(opts Options) *Renderer {
	imageURL := opts.ImageURL
	if imageURL == nil {
		b := cms.ImageURLBuilder{ProjectID: opts.ProjectID, Dataset: opts.Dataset}
		imageURL = func(ref string) string { return b.URL(ref, 0) }
	}
	return &Renderer{
		serializers: Serializers(),
		imageURL:    imageURL,
	}
}

// Component returns a templ.Component that renders blocks as HTML.
func (r *Renderer) Component(blocks []Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		r.Render(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Render writes the HTML representation of blocks to buf.
func (r *Renderer) Render(buf *bytes.Buffer, blocks []Block) {
	var list []Block
	flushList := func() {
		if len(list) > 0 {
			r.renderLists(buf, list)
			list = nil
		}
	}
	for i := range blocks {
		b := blocks[i]
		if b.ListItem != "" {
			list = append(list, b)
			continue
		}
		flushList()
		r.renderBlock(buf, &b)
	}
	flushList()
}

// renderLists renders a run of list items, starting a new list whenever the
// kind changes at the outermost level of the run.
func (r *Renderer) renderLists(buf *bytes.Buffer, items []Block) {
	level := itemLevel(items[0])
	start := 0
	for i := 1; i <= len(items); i++ {
		if i == len(items) || (itemLevel(items[i]) <= level && items[i].ListItem != items[start].ListItem) {
			r.renderList(buf, items[start:i])
			start = i
		}
	}
}

// renderList renders one list. Items deeper than the first item are nested
// inside the preceding item.
func (r *Renderer) renderList(buf *bytes.Buffer, items []Block) {
	level := itemLevel(items[0])
	var inner bytes.Buffer
	for i := 0; i < len(items); {
		it := items[i]
		children := r.renderSpans(&it)
		j := i + 1
		for j < len(items) && itemLevel(items[j]) > level {
			j++
		}
		if j > i+1 {
			var nested bytes.Buffer
			r.renderLists(&nested, items[i+1:j])
			children += nested.String()
		}
		r.serialize(&inner, Node{Tag: "li", Children: children, Block: &it})
		i = j
	}
	r.serialize(buf, Node{Tag: listTag(items[0].ListItem), Children: inner.String()})
}

func itemLevel(b Block) int {
	if b.Level < 1 {
		return 1
	}
	return b.Level
}

func (r *Renderer) renderBlock(buf *bytes.Buffer, b *Block) {
	r.serialize(buf, Node{Tag: blockTag(b), Children: r.renderSpans(b), Block: b})
}

// renderSpans renders the inline children of b with their marks applied.
// The first mark in a span's list ends up outermost.
func (r *Renderer) renderSpans(b *Block) string {
	var out strings.Builder
	for _, s := range b.Children {
		text := strings.ReplaceAll(html.EscapeString(s.Text), "\n", "<br/>")
		for i := len(s.Marks) - 1; i >= 0; i-- {
			n := Node{Tag: s.Marks[i], Children: text}
			if def, ok := findMarkDef(b.MarkDefs, s.Marks[i]); ok {
				n.Tag = def.Type
				n.Href = SafeURL(def.Href)
				if def.Type == "link" && n.Href == "" {
					continue
				}
			}
			var mb bytes.Buffer
			r.serialize(&mb, n)
			text = mb.String()
		}
		out.WriteString(text)
	}
	return out.String()
}

func findMarkDef(defs []MarkDef, key string) (MarkDef, bool) {
	for _, d := range defs {
		if d.Key == key {
			return d, true
		}
	}
	return MarkDef{}, false
}

func blockTag(b *Block) string {
	if b.ListItem != "" {
		return "li"
	}
	if b.Type == "block" {
		if b.Style == "" {
			return "normal"
		}
		return b.Style
	}
	return b.Type
}

func listTag(kind string) string {
	if kind == "number" {
		return "number"
	}
	return "bullet"
}

// SafeURL validates and escapes a URL for use in an HTML attribute.
// It returns "" for anything other than relative, http, https, mailto and tel URLs.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
