package portabletext

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func textBlock(style, text string) Block {
	return Block{Type: "block", Style: style, Children: []Span{{Type: "span", Text: text}}}
}

func render(blocks ...Block) string {
	r := New(Options{ProjectID: "proj", Dataset: "production"})
	var buf bytes.Buffer
	r.Render(&buf, blocks)
	return buf.String()
}

func TestRenderTableSerializers(t *testing.T) {
	tests := []struct {
		name     string
		block    Block
		expected string
	}{
		{"h1", textBlock("h1", "Title"), `<h1 class="text-2xl font-bold my-5">Title</h1>`},
		{"h2", textBlock("h2", "Section"), `<h2 class="text-xl font-bold my-5">Section</h2>`},
		{
			"li",
			Block{Type: "block", Style: "normal", ListItem: "bullet", Children: []Span{{Type: "span", Text: "item"}}},
			`<ul><li class="ml-4 list-disc">item</li></ul>`,
		},
		{
			"link",
			Block{
				Type:     "block",
				Style:    "normal",
				MarkDefs: []MarkDef{{Key: "k1", Type: "link", Href: "https://example.com/a_b"}},
				Children: []Span{{Type: "span", Text: "here", Marks: []string{"k1"}}},
			},
			`<p><a href="https://example.com/a_b" class="text-blue-500 hover:underline">here</a></p>`,
		},
	}
	for _, tt := range tests {
		got := render(tt.block)
		if got != tt.expected {
			t.Errorf("%s: Render = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestRenderDefaultSerializers(t *testing.T) {
	tests := []struct {
		name     string
		block    Block
		expected string
	}{
		{"normal", textBlock("normal", "para"), "<p>para</p>"},
		{"empty style", textBlock("", "para"), "<p>para</p>"},
		{"h3", textBlock("h3", "small"), "<h3>small</h3>"},
		{"blockquote", textBlock("blockquote", "quoted"), "<blockquote>quoted</blockquote>"},
		{"unknown style", textBlock("fancy", "odd"), "<p>odd</p>"},
		{"unknown type with text", Block{Type: "callout", Children: []Span{{Type: "span", Text: "note"}}}, "<p>note</p>"},
		{"unknown type without text", Block{Type: "youtube"}, ""},
		{"code", Block{Type: "code", Language: "go", Code: "a < b"}, `<pre class="code-block"><code class="language-go">a &lt; b</code></pre>`},
	}
	for _, tt := range tests {
		got := render(tt.block)
		if got != tt.expected {
			t.Errorf("%s: Render = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestRenderDecorators(t *testing.T) {
	b := Block{
		Type: "block",
		Children: []Span{
			{Type: "span", Text: "bold", Marks: []string{"strong"}},
			{Type: "span", Text: " and "},
			{Type: "span", Text: "both", Marks: []string{"strong", "em"}},
			{Type: "span", Text: " "},
			{Type: "span", Text: "odd", Marks: []string{"sparkle"}},
		},
	}
	got := render(b)
	expected := "<p><strong>bold</strong> and <strong><em>both</em></strong> odd</p>"
	if got != expected {
		t.Errorf("Render = %q, want %q", got, expected)
	}
}

func TestRenderLinkWithUnsafeHref(t *testing.T) {
	b := Block{
		Type:     "block",
		MarkDefs: []MarkDef{{Key: "x", Type: "link", Href: "javascript:alert(1)"}},
		Children: []Span{{Type: "span", Text: "click", Marks: []string{"x"}}},
	}
	got := render(b)
	if strings.Contains(got, "<a") || strings.Contains(got, "javascript") {
		t.Errorf("unsafe link should render as text, got %q", got)
	}
	if got != "<p>click</p>" {
		t.Errorf("Render = %q, want %q", got, "<p>click</p>")
	}
}

func TestRenderEscapesText(t *testing.T) {
	got := render(textBlock("normal", `<script>alert("x")</script>`))
	if strings.Contains(got, "<script>") {
		t.Errorf("text should be escaped, got %q", got)
	}
}

func TestRenderListGrouping(t *testing.T) {
	blocks := []Block{
		{Type: "block", ListItem: "bullet", Children: []Span{{Type: "span", Text: "a"}}},
		{Type: "block", ListItem: "bullet", Children: []Span{{Type: "span", Text: "b"}}},
		{Type: "block", ListItem: "number", Children: []Span{{Type: "span", Text: "one"}}},
		textBlock("normal", "after"),
	}
	got := render(blocks...)
	expected := `<ul><li class="ml-4 list-disc">a</li><li class="ml-4 list-disc">b</li></ul>` +
		`<ol><li class="ml-4 list-disc">one</li></ol>` +
		`<p>after</p>`
	if got != expected {
		t.Errorf("Render = %q, want %q", got, expected)
	}
}

func TestRenderNestedLists(t *testing.T) {
	item := func(kind string, level int, text string) Block {
		return Block{Type: "block", ListItem: kind, Level: level, Children: []Span{{Type: "span", Text: text}}}
	}
	got := render(
		item("bullet", 1, "a"),
		item("number", 2, "a.1"),
		item("number", 2, "a.2"),
		item("bullet", 1, "b"),
	)
	expected := `<ul><li class="ml-4 list-disc">a<ol><li class="ml-4 list-disc">a.1</li><li class="ml-4 list-disc">a.2</li></ol></li>` +
		`<li class="ml-4 list-disc">b</li></ul>`
	if got != expected {
		t.Errorf("Render = %q, want %q", got, expected)
	}
}

func TestRenderImageUsesResolver(t *testing.T) {
	r := New(Options{ImageURL: func(ref string) string { return "/assets/" + ref }})
	var buf bytes.Buffer
	r.Render(&buf, []Block{{Type: "image", Alt: "a cat", Asset: &AssetRef{Ref: "cat.jpg"}}})
	got := buf.String()
	if !strings.Contains(got, `src="/assets/cat.jpg"`) || !strings.Contains(got, `alt="a cat"`) {
		t.Errorf("image not rendered through resolver: %q", got)
	}
}

func TestRenderImageDefaultCDN(t *testing.T) {
	got := render(Block{Type: "image", Asset: &AssetRef{Ref: "image-abc123-800x600-png"}})
	want := "https://cdn.sanity.io/images/proj/production/abc123-800x600.png"
	if !strings.Contains(got, want) {
		t.Errorf("Render = %q, want src %q", got, want)
	}
}

func TestRenderImageMalformedRefSkipped(t *testing.T) {
	got := render(Block{Type: "image", Asset: &AssetRef{Ref: "not-a-ref"}})
	if got != "" {
		t.Errorf("malformed ref should render nothing, got %q", got)
	}
}

func TestRenderSoftLineBreak(t *testing.T) {
	got := render(textBlock("normal", "one\ntwo"))
	if got != "<p>one<br/>two</p>" {
		t.Errorf("Render = %q", got)
	}
}

func TestComponentWritesHTML(t *testing.T) {
	r := New(Options{})
	var buf bytes.Buffer
	if err := r.Component([]Block{textBlock("h1", "Hi")}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Hi</h1>") {
		t.Errorf("component output = %q", buf.String())
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"/local/path", "/local/path"},
		{"#anchor", "#anchor"},
		{"https://example.com/?a=1&b=2", "https://example.com/?a=1&amp;b=2"},
		{"mailto:me@example.com", "mailto:me@example.com"},
		{"javascript:alert(1)", ""},
		{"data:text/html;base64,xx", ""},
		{"no-scheme.example.com", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
