package cms

import (
	"regexp"
	"strconv"
	"strings"
)

const defaultImageBaseURL = "https://cdn.sanity.io"

// image-<id>-<width>x<height>-<format>
var reImageRef = regexp.MustCompile(`^image-([A-Za-z0-9]+)-(\d+)x(\d+)-([a-z0-9]+)$`)

// ImageURLBuilder resolves image asset references to CDN URLs.
type ImageURLBuilder struct {
	ProjectID string
	Dataset   string
	BaseURL   string // default "https://cdn.sanity.io"
}

// URL returns the CDN URL for ref, or "" when ref is not an image reference.
// A positive width asks the CDN for a resized rendition.
func (b ImageURLBuilder) URL(ref string, width int) string {
	m := reImageRef.FindStringSubmatch(ref)
	if m == nil || b.ProjectID == "" || b.Dataset == "" {
		return ""
	}
	base := b.BaseURL
	if base == "" {
		base = defaultImageBaseURL
	}
	u := strings.TrimRight(base, "/") + "/images/" + b.ProjectID + "/" + b.Dataset + "/" +
		m[1] + "-" + m[2] + "x" + m[3] + "." + m[4]
	if width > 0 {
		u += "?w=" + strconv.Itoa(width)
	}
	return u
}

// ParseImageRef splits ref into asset id, dimensions and format.
func ParseImageRef(ref string) (id string, width, height int, format string, ok bool) {
	m := reImageRef.FindStringSubmatch(ref)
	if m == nil {
		return "", 0, 0, "", false
	}
	width, _ = strconv.Atoi(m[2])
	height, _ = strconv.Atoi(m[3])
	return m[1], width, height, m[4], true
}
