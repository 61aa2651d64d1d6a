package content

import (
	"time"

	"github.com/eringen/postpage/portabletext"
)

// Post is the normalized record a post page is rendered from.
type Post struct {
	ID          string               `json:"_id"`
	Title       string               `json:"title"`
	Slug        string               `json:"slug"`
	Author      Author               `json:"author"`
	Description string               `json:"description"`
	MainImage   Image                `json:"mainImage"`
	Body        []portabletext.Block `json:"body"`
	CreatedAt   time.Time            `json:"_createdAt"`
	Comments    []Comment            `json:"comments"`
}

// Author is the post's author reference, joined at load time.
type Author struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Image Image  `json:"image"`
}

// Image is a reference to an uploaded image asset.
type Image struct {
	Ref string `json:"ref"`
	Alt string `json:"alt,omitempty"`
}

// Comment is a reader comment. Email is write-only: read queries never
// select it and it is not serialized.
type Comment struct {
	ID        string    `json:"_id"`
	PostID    string    `json:"postId"`
	Name      string    `json:"name"`
	Email     string    `json:"-"`
	Text      string    `json:"comment"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"_createdAt"`
}

// approvedOnly drops any comment whose approval flag is not set.
func approvedOnly(comments []Comment) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.Approved {
			out = append(out, c)
		}
	}
	return out
}
