package postpage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eringen/postpage/content"
)

// fakeSource is an in-memory content.Source whose data and failures can be
// changed between calls.
type fakeSource struct {
	mu       sync.Mutex
	posts    map[string]content.Post
	slugsErr error
	postErr  error
	gate     chan struct{}
	calls    atomic.Int32
}

func newFakeSource(posts ...content.Post) *fakeSource {
	s := &fakeSource{posts: make(map[string]content.Post)}
	for _, p := range posts {
		s.posts[p.Slug] = p
	}
	return s
}

func (s *fakeSource) Slugs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugsErr != nil {
		return nil, s.slugsErr
	}
	var slugs []string
	for slug := range s.posts {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

func (s *fakeSource) PostBySlug(ctx context.Context, slug string) (content.Post, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return content.Post{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postErr != nil {
		return content.Post{}, s.postErr
	}
	p, ok := s.posts[slug]
	if !ok {
		return content.Post{}, content.ErrNotFound
	}
	return p, nil
}

func (s *fakeSource) set(p content.Post) {
	s.mu.Lock()
	s.posts[p.Slug] = p
	s.mu.Unlock()
}

func (s *fakeSource) remove(slug string) {
	s.mu.Lock()
	delete(s.posts, slug)
	s.mu.Unlock()
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.postErr = err
	s.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func cachePost(slug, title string) content.Post {
	return content.Post{
		ID:        "id-" + slug,
		Slug:      slug,
		Title:     title,
		Author:    content.Author{Name: "Ada"},
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Comments: []content.Comment{
			{ID: "c1", PostID: "id-" + slug, Name: "Bob", Email: "bob@example.com", Text: "hi", Approved: true},
		},
	}
}

// clock is a settable time source for revalidation tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(src content.Source, snapshots *PageStore) (*PageCache, *clock) {
	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewPageCache(src, 12*time.Hour, snapshots, quietLogger())
	c.now = clk.Now
	return c, clk
}

func TestPrebuildThenResolve(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"), cachePost("b", "B"))
	c, _ := newTestCache(src, nil)

	n, err := c.Prebuild(context.Background())
	if err != nil {
		t.Fatalf("Prebuild failed: %v", err)
	}
	if n != 2 {
		t.Errorf("built = %d, want 2", n)
	}
	before := src.calls.Load()

	post, res, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != Prebuilt {
		t.Errorf("resolution = %s, want prebuilt", res)
	}
	if post.Title != "A" {
		t.Errorf("Title = %q, want A", post.Title)
	}
	if src.calls.Load() != before {
		t.Error("a fresh pre-built page must not hit the source")
	}
}

func TestResolveBuiltOnDemand(t *testing.T) {
	src := newFakeSource(cachePost("late", "Late"))
	c, _ := newTestCache(src, nil)

	_, res, err := c.Resolve(context.Background(), "late")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != BuiltOnDemand {
		t.Errorf("first resolution = %s, want built-on-demand", res)
	}

	_, res, _ = c.Resolve(context.Background(), "late")
	if res != Prebuilt {
		t.Errorf("second resolution = %s, want prebuilt", res)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

func TestResolveNotFoundIsNotCached(t *testing.T) {
	src := newFakeSource()
	c, _ := newTestCache(src, nil)

	_, res, err := c.Resolve(context.Background(), "nope")
	if err != nil {
		t.Fatalf("not found must not be an error, got %v", err)
	}
	if res != NotFound {
		t.Errorf("resolution = %s, want not-found", res)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, not-found must not be cached", c.Len())
	}

	src.set(cachePost("nope", "Now exists"))
	_, res, _ = c.Resolve(context.Background(), "nope")
	if res != BuiltOnDemand {
		t.Errorf("resolution after publish = %s, want built-on-demand", res)
	}
}

func TestResolveTransientError(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	src.fail(errors.New("connection reset"))
	c, _ := newTestCache(src, nil)

	_, _, err := c.Resolve(context.Background(), "a")
	if err == nil {
		t.Fatal("expected transient error")
	}
	if errors.Is(err, content.ErrNotFound) {
		t.Error("transient error must not look like not-found")
	}
}

func TestStalePageServedWhileRefreshing(t *testing.T) {
	src := newFakeSource(cachePost("a", "Old"))
	c, clk := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	src.set(cachePost("a", "New"))
	clk.Advance(13 * time.Hour)

	post, res, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if post.Title != "Old" || res != Prebuilt {
		t.Errorf("got %q/%s, want stale Old/prebuilt", post.Title, res)
	}

	c.Wait()
	post, _, _ = c.Resolve(context.Background(), "a")
	if post.Title != "New" {
		t.Errorf("Title after refresh = %q, want New", post.Title)
	}
}

func TestFreshPageIsNotRefreshed(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	c, clk := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := src.calls.Load()

	clk.Advance(11 * time.Hour)
	c.Resolve(context.Background(), "a")
	c.Wait()
	if src.calls.Load() != before {
		t.Error("page inside the revalidation window must not be refreshed")
	}
}

func TestRefreshNotFoundEvicts(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	c, clk := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	src.remove("a")
	clk.Advance(13 * time.Hour)
	if _, res, _ := c.Resolve(context.Background(), "a"); res != Prebuilt {
		t.Errorf("stale page should still be served, got %s", res)
	}
	c.Wait()

	if _, ok := c.Peek("a"); ok {
		t.Error("removed post should be evicted")
	}
	if _, res, _ := c.Resolve(context.Background(), "a"); res != NotFound {
		t.Errorf("resolution = %s, want not-found", res)
	}
}

func TestRefreshErrorKeepsStalePage(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	c, clk := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	src.fail(errors.New("timeout"))
	clk.Advance(13 * time.Hour)
	c.Resolve(context.Background(), "a")
	c.Wait()

	post, ok := c.Peek("a")
	if !ok || post.Title != "A" {
		t.Errorf("stale page should survive a failed refresh, got %v %+v", ok, post)
	}
}

func TestOneRefreshPerSlug(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	c, clk := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := src.calls.Load()

	src.gate = make(chan struct{})
	clk.Advance(13 * time.Hour)
	for i := 0; i < 5; i++ {
		c.Resolve(context.Background(), "a")
	}
	close(src.gate)
	c.Wait()

	if got := src.calls.Load() - before; got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestConcurrentOnDemandLoadsCoalesce(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	src.gate = make(chan struct{})
	c, _ := newTestCache(src, nil)

	var wg sync.WaitGroup
	results := make([]Resolution, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, res, err := c.Resolve(context.Background(), "a")
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
			}
			results[i] = res
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
	for i, res := range results {
		if res == NotFound {
			t.Errorf("result %d = not-found", i)
		}
	}
}

func TestDisconnectedReaderDoesNotFailCoalescedLoad(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	src.gate = make(chan struct{})
	c, _ := newTestCache(src, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.Resolve(ctxA, "a")
		errA <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type outcome struct {
		post content.Post
		res  Resolution
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		p, res, err := c.Resolve(context.Background(), "a")
		done <- outcome{p, res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("disconnected reader err = %v, want context.Canceled", err)
	}
	close(src.gate)

	got := <-done
	if got.err != nil {
		t.Fatalf("live reader failed: %v", got.err)
	}
	if got.res != BuiltOnDemand || got.post.Title != "A" {
		t.Errorf("live reader = %v %q, want built-on-demand A", got.res, got.post.Title)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	if _, ok := c.Peek("a"); !ok {
		t.Error("page should be cached after the shared load")
	}
}

func TestPrebuildErrors(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	src.slugsErr = errors.New("store unreachable")
	c, _ := newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err == nil {
		t.Error("expected Prebuild to fail when slugs cannot be listed")
	}

	src = newFakeSource(cachePost("a", "A"))
	src.fail(errors.New("boom"))
	c, _ = newTestCache(src, nil)
	if _, err := c.Prebuild(context.Background()); err == nil {
		t.Error("expected Prebuild to fail when a post cannot be loaded")
	}
}

func TestResolveRoundTripWithinWindow(t *testing.T) {
	src := newFakeSource(cachePost("a", "A"))
	c, clk := newTestCache(src, nil)

	first, _, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Hour)
	second, _, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip differs:\n%+v\n%+v", first, second)
	}
}

func TestResolutionString(t *testing.T) {
	tests := map[Resolution]string{
		Prebuilt:      "prebuilt",
		BuiltOnDemand: "built-on-demand",
		NotFound:      "not-found",
	}
	for r, want := range tests {
		if r.String() != want {
			t.Errorf("%d.String() = %q, want %q", r, r.String(), want)
		}
	}
}

func setupPageStore(t *testing.T) *PageStore {
	t.Helper()
	s, err := OpenPageStore("")
	if err != nil {
		t.Fatalf("OpenPageStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPageStoreRoundTrip(t *testing.T) {
	s := setupPageStore(t)
	fetched := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Put("a", cachePost("a", "A"), fetched); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	snap, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if snap.Post.Title != "A" || !snap.FetchedAt.Equal(fetched) {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Post.Comments[0].Email != "" {
		t.Error("comment email must not be persisted")
	}

	if _, ok, _ := s.Get("missing"); ok {
		t.Error("expected no snapshot for missing slug")
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All = %d snapshots, want 0", len(all))
	}
}

func TestPageStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenPageStore(dir)
	if err != nil {
		t.Fatalf("OpenPageStore failed: %v", err)
	}
	if err := s.Put("a", cachePost("a", "A"), time.Now()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenPageStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.Get("a"); err != nil || !ok {
		t.Errorf("snapshot should survive reopen: %v %v", ok, err)
	}
}

func TestWarmRestoresPrebuiltPages(t *testing.T) {
	snapshots := setupPageStore(t)

	src := newFakeSource(cachePost("a", "A"), cachePost("b", "B"))
	c, _ := newTestCache(src, snapshots)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	down := newFakeSource()
	down.fail(errors.New("source offline"))
	restarted, _ := newTestCache(down, snapshots)
	n, err := restarted.Warm()
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if n != 2 {
		t.Errorf("warmed = %d, want 2", n)
	}

	post, res, err := restarted.Resolve(context.Background(), "b")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != Prebuilt || post.Title != "B" {
		t.Errorf("got %s %q, want prebuilt B", res, post.Title)
	}
	if down.calls.Load() != 0 {
		t.Error("restored pages must not hit the source")
	}
}

func TestResolveFallsBackToSnapshot(t *testing.T) {
	snapshots := setupPageStore(t)
	if err := snapshots.Put("a", cachePost("a", "Snap"), time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	src := newFakeSource()
	c, _ := newTestCache(src, snapshots)

	post, res, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if res != Prebuilt || post.Title != "Snap" {
		t.Errorf("got %s %q, want prebuilt Snap", res, post.Title)
	}
	if src.calls.Load() != 0 {
		t.Error("fresh snapshot must not hit the source")
	}
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	snapshots := setupPageStore(t)
	src := newFakeSource(cachePost("a", "A"))
	c, _ := newTestCache(src, snapshots)
	if _, err := c.Prebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("a")
	if _, ok := c.Peek("a"); ok {
		t.Error("page still cached after Invalidate")
	}
	if _, ok, _ := snapshots.Get("a"); ok {
		t.Error("snapshot still stored after Invalidate")
	}
}
