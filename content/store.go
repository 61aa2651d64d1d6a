package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/postpage/portabletext"
)

// Store is a local content store backed by SQLite. It implements Source and CommentSink.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page loads read while the intake endpoint writes; writers wait
	// on busy_timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS authors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    image_ref TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    author_id TEXT,
    description TEXT NOT NULL DEFAULT '',
    main_image_ref TEXT NOT NULL DEFAULT '',
    main_image_alt TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    comment TEXT NOT NULL,
    approved INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, approved, created_at);
`)
	return err
}

// Slugs returns every post slug ordered by creation time, newest first.
func (s *Store) Slugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// PostBySlug returns the post with the given slug, its author, and its approved comments.
func (s *Store) PostBySlug(ctx context.Context, slug string) (Post, error) {
	var (
		p                      Post
		body, created          string
		authorID, name, imgRef string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT p.id, p.title, p.slug, p.description, p.main_image_ref, p.main_image_alt, p.body, p.created_at,
       COALESCE(a.id, ''), COALESCE(a.name, ''), COALESCE(a.image_ref, '')
FROM posts p LEFT JOIN authors a ON a.id = p.author_id
WHERE p.slug = ?
LIMIT 1`, slug).Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.MainImage.Ref, &p.MainImage.Alt,
		&body, &created, &authorID, &name, &imgRef)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return Post{}, fmt.Errorf("load post %q: %w", slug, err)
	}
	p.Author = Author{ID: authorID, Name: name, Image: Image{Ref: imgRef}}
	if err := json.Unmarshal([]byte(body), &p.Body); err != nil {
		return Post{}, fmt.Errorf("decode body of %q: %w", slug, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Post{}, fmt.Errorf("parse created_at of %q: %w", slug, err)
	}
	comments, err := s.approvedComments(ctx, p.ID)
	if err != nil {
		return Post{}, err
	}
	p.Comments = approvedOnly(comments)
	return p, nil
}

func (s *Store) approvedComments(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, post_id, name, comment, approved, created_at
FROM comments
WHERE post_id = ? AND approved = 1
ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		var approved int
		var created string
		if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Text, &approved, &created); err != nil {
			return nil, err
		}
		c.Approved = approved == 1
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// SavePost upserts a post and its author. Missing ids are generated.
// Comments on p are ignored; use ImportComment for those.
func (s *Store) SavePost(ctx context.Context, p Post) (Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if p.Body == nil {
		p.Body = []portabletext.Block{}
	}
	body, err := json.Marshal(p.Body)
	if err != nil {
		return Post{}, fmt.Errorf("encode body: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, err
	}
	defer tx.Rollback()

	var authorID any
	if p.Author.Name != "" {
		if p.Author.ID == "" {
			p.Author.ID = uuid.NewString()
		}
		authorID = p.Author.ID
		if _, err := tx.ExecContext(ctx, `
INSERT INTO authors (id, name, image_ref) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, image_ref = excluded.image_ref`,
			p.Author.ID, p.Author.Name, p.Author.Image.Ref); err != nil {
			return Post{}, fmt.Errorf("save author: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (id, slug, title, author_id, description, main_image_ref, main_image_alt, body, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    slug = excluded.slug, title = excluded.title, author_id = excluded.author_id,
    description = excluded.description, main_image_ref = excluded.main_image_ref,
    main_image_alt = excluded.main_image_alt, body = excluded.body`,
		p.ID, p.Slug, p.Title, authorID, p.Description, p.MainImage.Ref, p.MainImage.Alt,
		string(body), p.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return Post{}, fmt.Errorf("save post %q: %w", p.Slug, err)
	}
	if err := tx.Commit(); err != nil {
		return Post{}, err
	}
	p.Comments = nil
	return p, nil
}

// CreateComment stores a new comment for moderation. The approval flag is
// always cleared; only the external moderation workflow sets it.
func (s *Store) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, c.PostID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, fmt.Errorf("post id %q: %w", c.PostID, ErrNotFound)
	}
	if err != nil {
		return Comment{}, fmt.Errorf("check post: %w", err)
	}
	c.ID = uuid.NewString()
	c.Approved = false
	c.CreatedAt = s.now().UTC()
	if err := s.insertComment(ctx, `INSERT INTO`, c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// ImportComment writes c as-is, approval flag included. It exists for loading
// exports from the moderation system and is not reachable over HTTP.
func (s *Store) ImportComment(ctx context.Context, c Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	return s.insertComment(ctx, `INSERT OR REPLACE INTO`, c)
}

func (s *Store) insertComment(ctx context.Context, verb string, c Comment) error {
	approved := 0
	if c.Approved {
		approved = 1
	}
	_, err := s.db.ExecContext(ctx, verb+` comments (id, post_id, name, email, comment, approved, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.Name, c.Email, c.Text, approved, c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}
