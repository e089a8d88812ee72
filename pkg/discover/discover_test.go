package discover

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ssarchive/pkg/config"
	"ssarchive/pkg/dates"
	"ssarchive/pkg/page"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Discovery.MaxLoadAttempts = 3
	cfg.Discovery.LoadMoreWindow = 5 * time.Millisecond
	cfg.Discovery.ScrollWindow = 5 * time.Millisecond
	cfg.Discovery.PollInterval = time.Millisecond
	return cfg
}

func staticFeed(t *testing.T, initial string, chunks ...string) page.Feed {
	t.Helper()
	feed, err := page.NewStaticFeed(initial, chunks, "https://subscribestar.adult/someprofile")
	if err != nil {
		t.Fatal(err)
	}
	return feed
}

func postAnchor(id int) string {
	return fmt.Sprintf(`<a href="/someprofile/posts/%d">post</a>`, id)
}

func datedCard(id, day int) string {
	return fmt.Sprintf(`<div class="post">
		<div class="post-date">%d. ledna 2024 12:00</div>
		<a href="/someprofile/posts/%d">post</a>
	</div>`, day, id)
}

func TestDiscoverCollectsUniqueIDs(t *testing.T) {
	initial := `<html><body>` +
		postAnchor(1) + postAnchor(2) + postAnchor(1) + // repeated link
		`<a href="/someprofile/posts/12ab">malformed</a>` +
		`<a href="https://evil.example.net/posts/99">foreign</a>` +
		`</body></html>`

	feed := staticFeed(t, initial)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"1", "2"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestDiscoverAcrossChunks(t *testing.T) {
	feed := staticFeed(t,
		`<html><body>`+postAnchor(1)+`</body></html>`,
		`<html><body>`+postAnchor(2)+`</body></html>`,
		`<html><body>`+postAnchor(3)+`</body></html>`,
	)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Errorf("ids = %v, want 3 entries", ids)
	}
}

func TestDiscoverStopsAtTarget(t *testing.T) {
	initial := `<html><body>`
	for i := 1; i <= 10; i++ {
		initial += postAnchor(i)
	}
	initial += `</body></html>`

	feed := staticFeed(t, initial)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 {
		t.Errorf("got %d ids, want 4", len(ids))
	}
}

func TestDiscoverDateFilterWindow(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for day := 1; day <= 25; day++ {
		b.WriteString(datedCard(day, day))
	}
	b.WriteString(`</body></html>`)

	filter := dates.BuildFilter("2024-01-10", "2024-01-20")
	if filter == nil {
		t.Fatal("expected a filter")
	}

	feed := staticFeed(t, b.String())
	engine := NewEngine(feed, filter, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}

	if len(ids) != 11 {
		t.Fatalf("got %d ids, want 11 (days 10 through 20): %v", len(ids), ids)
	}
	if ids[0] != "10" || ids[len(ids)-1] != "20" {
		t.Errorf("range boundaries wrong: %v", ids)
	}
}

func TestDiscoverFailOpenOnMissingDates(t *testing.T) {
	initial := `<html><body>` + postAnchor(5) + `</body></html>`

	filter := dates.BuildFilter("2024-01-10", "2024-01-20")
	feed := staticFeed(t, initial)
	engine := NewEngine(feed, filter, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("undated posts must pass the filter, got %v", ids)
	}
}

func TestDiscoverDataAttributeCandidates(t *testing.T) {
	initial := `<html><body>
		<div class="post" data-post-id="77"><div class="post-date">2024-01-05 10:00</div></div>
		<div data-id="88"></div>
		<div data-post-id="not-a-number"></div>
	</body></html>`

	feed := staticFeed(t, initial)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "77" || ids[1] != "88" {
		t.Errorf("ids = %v, want [77 88]", ids)
	}
}

func TestDiscoverLoadAttemptsBounded(t *testing.T) {
	// a feed that never stops yielding must still respect the attempt cap
	chunks := make([]string, 10)
	for i := range chunks {
		chunks[i] = `<html><body>` + postAnchor(i+2) + `</body></html>`
	}

	feed := staticFeed(t, `<html><body>`+postAnchor(1)+`</body></html>`, chunks...)
	cfg := testConfig()
	cfg.Discovery.MaxLoadAttempts = 3
	engine := NewEngine(feed, nil, cfg, nil)

	ids, err := engine.Discover(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 {
		t.Errorf("got %d ids, want 1 initial + 3 capped loads", len(ids))
	}
}

func TestDiscoverMixedMarkupKeepsDocumentOrder(t *testing.T) {
	initial := `<html><body>
		<div class="post" data-post-id="5"></div>
		<a href="/someprofile/posts/1">post</a>
		<div data-id="7"></div>
		<a href="/someprofile/posts/2">post</a>
	</body></html>`

	feed := staticFeed(t, initial)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ids, err := engine.Discover(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"5", "1", "7", "2"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s (document order)", i, ids[i], want[i])
		}
	}
}

func TestDiscoverCancellationReturnsPartial(t *testing.T) {
	feed := staticFeed(t,
		`<html><body>`+postAnchor(1)+`</body></html>`,
		`<html><body>`+postAnchor(2)+`</body></html>`,
	)
	engine := NewEngine(feed, nil, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids, err := engine.Discover(ctx, 10)
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected the already-visible id, got %v", ids)
	}
}

func TestDiscoverTerminatesOnExhaustedFeed(t *testing.T) {
	feed := staticFeed(t, `<html><body>`+postAnchor(1)+`</body></html>`)
	engine := NewEngine(feed, nil, testConfig(), nil)

	done := make(chan struct{})
	var ids []string
	go func() {
		ids, _ = engine.Discover(context.Background(), 50)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not terminate on an exhausted feed")
	}
	if len(ids) != 1 {
		t.Errorf("ids = %v, want 1 entry", ids)
	}
}
