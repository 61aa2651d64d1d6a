package content

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/postpage/cms"
	"github.com/eringen/postpage/portabletext"
)

const slugsQuery = `*[_type == "post" && defined(slug.current)]{"slug": slug.current}`

// The comments projection never includes email.
const postBySlugQuery = `*[_type == "post" && slug.current == $slug][0]{
  _id,
  _createdAt,
  title,
  "slug": slug.current,
  author->{_id, name, image},
  "comments": *[_type == "comment" && post._ref == ^._id && approved == true] | order(_createdAt asc){
    _id, name, comment, approved, _createdAt
  },
  description,
  mainImage,
  body
}`

const postIDQuery = `*[_type == "post" && _id == $id][0]{_id}`

// Fetcher is the part of cms.Client a CMSSource needs.
type Fetcher interface {
	Fetch(ctx context.Context, query string, params map[string]any, result any) (bool, error)
	Mutate(ctx context.Context, mutations ...cms.Mutation) error
}

// CMSSource loads posts from the hosted content API.
type CMSSource struct {
	client Fetcher
	now    func() time.Time
}

// NewCMSSource wraps a content API client.
func NewCMSSource(client Fetcher) *CMSSource {
	return &CMSSource{client: client, now: time.Now}
}

type imageDoc struct {
	Asset *struct {
		Ref string `json:"_ref"`
	} `json:"asset"`
	Alt string `json:"alt"`
}

func (d *imageDoc) image() Image {
	if d == nil || d.Asset == nil {
		return Image{}
	}
	return Image{Ref: d.Asset.Ref, Alt: d.Alt}
}

type postDoc struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"_createdAt"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Author    *struct {
		ID    string    `json:"_id"`
		Name  string    `json:"name"`
		Image *imageDoc `json:"image"`
	} `json:"author"`
	Comments []struct {
		ID        string    `json:"_id"`
		Name      string    `json:"name"`
		Comment   string    `json:"comment"`
		Approved  bool      `json:"approved"`
		CreatedAt time.Time `json:"_createdAt"`
	} `json:"comments"`
	Description string               `json:"description"`
	MainImage   *imageDoc            `json:"mainImage"`
	Body        []portabletext.Block `json:"body"`
}

func (d postDoc) normalize() Post {
	p := Post{
		ID:          d.ID,
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		MainImage:   d.MainImage.image(),
		Body:        d.Body,
		CreatedAt:   d.CreatedAt,
	}
	if d.Author != nil {
		p.Author = Author{ID: d.Author.ID, Name: d.Author.Name, Image: d.Author.Image.image()}
	}
	comments := make([]Comment, 0, len(d.Comments))
	for _, c := range d.Comments {
		comments = append(comments, Comment{
			ID:        c.ID,
			PostID:    d.ID,
			Name:      c.Name,
			Text:      c.Comment,
			Approved:  c.Approved,
			CreatedAt: c.CreatedAt,
		})
	}
	p.Comments = approvedOnly(comments)
	return p
}

// Slugs enumerates every post slug known to the content API.
func (s *CMSSource) Slugs(ctx context.Context) ([]string, error) {
	var docs []struct {
		Slug string `json:"slug"`
	}
	if _, err := s.client.Fetch(ctx, slugsQuery, nil, &docs); err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}
	slugs := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Slug != "" {
			slugs = append(slugs, d.Slug)
		}
	}
	return slugs, nil
}

// PostBySlug loads the first post whose slug matches.
func (s *CMSSource) PostBySlug(ctx context.Context, slug string) (Post, error) {
	var doc postDoc
	found, err := s.client.Fetch(ctx, postBySlugQuery, map[string]any{"slug": slug}, &doc)
	if err != nil {
		return Post{}, fmt.Errorf("load post %q: %w", slug, err)
	}
	if !found {
		return Post{}, fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}
	return doc.normalize(), nil
}

// CreateComment creates an unapproved comment document referencing its post.
func (s *CMSSource) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	found, err := s.client.Fetch(ctx, postIDQuery, map[string]any{"id": c.PostID}, nil)
	if err != nil {
		return Comment{}, fmt.Errorf("check post: %w", err)
	}
	if !found {
		return Comment{}, fmt.Errorf("post id %q: %w", c.PostID, ErrNotFound)
	}

	c.ID = uuid.NewString()
	c.Approved = false
	c.CreatedAt = s.now().UTC()
	err = s.client.Mutate(ctx, cms.Mutation{Create: map[string]any{
		"_id":   c.ID,
		"_type": "comment",
		"post": map[string]any{
			"_type": "reference",
			"_ref":  c.PostID,
		},
		"name":     c.Name,
		"email":    c.Email,
		"comment":  c.Text,
		"approved": false,
	}})
	if err != nil {
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}
