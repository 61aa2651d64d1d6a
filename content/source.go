// Package content loads post records from a content store and writes pending comments to it.
package content

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a slug or post id has no matching post.
var ErrNotFound = errors.New("content: not found")

// Source is a read-only view of the posts in a content store.
type Source interface {
	// Slugs enumerates every known post slug.
	Slugs(ctx context.Context) ([]string, error)
	// PostBySlug loads one post with its author and approved comments.
	// Unknown slugs return an error wrapping ErrNotFound.
	PostBySlug(ctx context.Context, slug string) (Post, error)
}

// CommentSink accepts new comments. Implementations store them unapproved.
type CommentSink interface {
	CreateComment(ctx context.Context, c Comment) (Comment, error)
}
