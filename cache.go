package postpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/postpage/content"
)

// Resolution reports how a page request was satisfied.
type Resolution int

const (
	// NotFound means no post has the requested slug.
	NotFound Resolution = iota
	// Prebuilt means the page was already built, fresh or stale.
	Prebuilt
	// BuiltOnDemand means the page was built for this request and cached.
	BuiltOnDemand
)

func (r Resolution) String() string {
	switch r {
	case Prebuilt:
		return "prebuilt"
	case BuiltOnDemand:
		return "built-on-demand"
	default:
		return "not-found"
	}
}

type pageEntry struct {
	post    content.Post
	fetched time.Time
}

// PageCache keeps loaded posts by slug and revalidates them in the background
// once they are older than the revalidation window.
type PageCache struct {
	mu         sync.RWMutex
	entries    map[string]pageEntry
	refreshing map[string]struct{}
	wg         sync.WaitGroup
	group      singleflight.Group

	source    content.Source
	ttl       time.Duration
	snapshots *PageStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewPageCache creates a PageCache over src. snapshots may be nil.
func NewPageCache(src content.Source, revalidateAfter time.Duration, snapshots *PageStore, logger *slog.Logger) *PageCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageCache{
		entries:    make(map[string]pageEntry),
		refreshing: make(map[string]struct{}),
		source:     src,
		ttl:        revalidateAfter,
		snapshots:  snapshots,
		logger:     logger,
		now:        time.Now,
	}
}

// Warm loads every persisted snapshot into memory, keeping each one's fetch
// time so stale snapshots are revalidated on first request.
func (c *PageCache) Warm() (int, error) {
	if c.snapshots == nil {
		return 0, nil
	}
	snaps, err := c.snapshots.All()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	for _, s := range snaps {
		c.entries[s.Post.Slug] = pageEntry{post: s.Post, fetched: s.FetchedAt}
	}
	c.mu.Unlock()
	return len(snaps), nil
}

// Prebuild enumerates every known slug and loads its post. A failure to list
// or load aborts the build; a slug that vanished between the two is skipped.
func (c *PageCache) Prebuild(ctx context.Context) (int, error) {
	slugs, err := c.source.Slugs(ctx)
	if err != nil {
		return 0, fmt.Errorf("prebuild: %w", err)
	}
	built := 0
	for _, slug := range slugs {
		post, err := c.source.PostBySlug(ctx, slug)
		if errors.Is(err, content.ErrNotFound) {
			c.logger.Warn("slug vanished during prebuild", "slug", slug)
			continue
		}
		if err != nil {
			return built, fmt.Errorf("prebuild %q: %w", slug, err)
		}
		c.put(slug, post)
		built++
	}
	return built, nil
}

// Resolve returns the post for slug and how it was resolved. An unknown slug
// yields NotFound with a nil error; only transient failures return an error.
func (c *PageCache) Resolve(ctx context.Context, slug string) (content.Post, Resolution, error) {
	if entry, ok := c.lookup(slug); ok {
		if c.now().Sub(entry.fetched) >= c.ttl {
			c.revalidate(ctx, slug)
		}
		return entry.post, Prebuilt, nil
	}

	// The shared load outlives any single caller; each caller only stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(slug, func() (interface{}, error) {
		post, err := c.source.PostBySlug(loadCtx, slug)
		if err != nil {
			return nil, err
		}
		c.put(slug, post)
		return post, nil
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return content.Post{}, NotFound, ctx.Err()
	}
	if errors.Is(r.Err, content.ErrNotFound) {
		return content.Post{}, NotFound, nil
	}
	if r.Err != nil {
		return content.Post{}, NotFound, r.Err
	}
	return r.Val.(content.Post), BuiltOnDemand, nil
}

// Peek returns the cached post for slug without loading or revalidating.
func (c *PageCache) Peek(slug string) (content.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[slug]
	return e.post, ok
}

// Invalidate drops slug so the next request rebuilds it.
func (c *PageCache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.mu.Unlock()
	c.deleteSnapshot(slug)
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Wait blocks until in-flight background refreshes finish.
func (c *PageCache) Wait() {
	c.wg.Wait()
}

// lookup checks memory, then the snapshot store.
func (c *PageCache) lookup(slug string) (pageEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[slug]
	c.mu.RUnlock()
	if ok || c.snapshots == nil {
		return e, ok
	}

	snap, found, err := c.snapshots.Get(slug)
	if err != nil {
		c.logger.Error("read page snapshot", "slug", slug, "error", err)
		return pageEntry{}, false
	}
	if !found {
		return pageEntry{}, false
	}
	e = pageEntry{post: snap.Post, fetched: snap.FetchedAt}
	c.mu.Lock()
	c.entries[slug] = e
	c.mu.Unlock()
	return e, true
}

func (c *PageCache) put(slug string, post content.Post) {
	fetched := c.now()
	c.mu.Lock()
	c.entries[slug] = pageEntry{post: post, fetched: fetched}
	c.mu.Unlock()

	if c.snapshots != nil {
		if err := c.snapshots.Put(slug, post, fetched); err != nil {
			c.logger.Error("save page snapshot", "slug", slug, "error", err)
		}
	}
}

func (c *PageCache) deleteSnapshot(slug string) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Delete(slug); err != nil {
		c.logger.Error("delete page snapshot", "slug", slug, "error", err)
	}
}

// revalidate starts at most one background refresh per slug. The stale entry
// keeps being served until the refresh replaces or evicts it.
func (c *PageCache) revalidate(ctx context.Context, slug string) {
	c.mu.Lock()
	if _, busy := c.refreshing[slug]; busy {
		c.mu.Unlock()
		return
	}
	c.refreshing[slug] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, slug)
			c.mu.Unlock()
		}()

		post, err := c.source.PostBySlug(ctx, slug)
		switch {
		case errors.Is(err, content.ErrNotFound):
			c.logger.Info("post removed, evicting page", "slug", slug)
			c.Invalidate(slug)
		case err != nil:
			c.logger.Error("revalidate page", "slug", slug, "error", err)
		default:
			c.put(slug, post)
		}
	}()
}
