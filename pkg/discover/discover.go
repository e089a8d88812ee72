// Package discover walks an infinite-scroll feed and collects the ordered
// set of unique post IDs that fall inside the configured date range.
package discover

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ssarchive/pkg/config"
	"ssarchive/pkg/dates"
	"ssarchive/pkg/logger"
	"ssarchive/pkg/page"
	"ssarchive/pkg/retry"
)

var (
	postPathPattern = regexp.MustCompile(`/posts/(\d+)(?:[/?#]|$)`)
	postIDPattern   = regexp.MustCompile(`^[0-9]+$`)
)

// Engine discovers post IDs from a feed. IDs are returned in document
// order; each ID appears at most once even when the feed repeats links
// across chunks.
type Engine struct {
	feed   page.Feed
	filter *dates.Filter
	cfg    config.DiscoveryConfig
	hosts  map[string]bool
	base   *url.URL
	logger logger.Logger
}

// NewEngine builds a discovery engine over the given feed. filter may be
// nil, in which case every post matches.
func NewEngine(feed page.Feed, filter *dates.Filter, cfg *config.Config, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}

	hosts := make(map[string]bool)
	for _, h := range cfg.Site.Hosts {
		hosts[h] = true
	}

	base, err := url.Parse(feed.BaseURL())
	if err != nil {
		base = &url.URL{}
	}

	return &Engine{
		feed:   feed,
		filter: filter,
		cfg:    cfg.Discovery,
		hosts:  hosts,
		base:   base,
		logger: log,
	}
}

// postID extracts and validates a post ID from an anchor href. Links to
// foreign hosts and malformed IDs are rejected.
func (e *Engine) postID(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := e.base.ResolveReference(u)
	if resolved.Host != "" && !e.hosts[resolved.Host] {
		return "", false
	}

	m := postPathPattern.FindStringSubmatch(resolved.Path)
	if m == nil {
		return "", false
	}
	if !postIDPattern.MatchString(m[1]) {
		return "", false
	}
	return m[1], true
}

// admit runs one candidate ID through dedup and the date filter, appending
// it to collected when it passes. Every extracted ID is marked seen,
// including ones the filter rejects, so repeated appearances never get
// re-examined.
func (e *Engine) admit(el *goquery.Selection, id string, seen map[string]bool, collected []string) []string {
	if seen[id] {
		return collected
	}
	seen[id] = true

	if e.filter != nil {
		when, known := dates.FromElement(el)
		if !e.filter.Matches(when, known) {
			e.logger.DebugWithFields("post outside date range", map[string]interface{}{
				"post_id": id,
			})
			return collected
		}
	}

	return append(collected, id)
}

// harvest scans the current document for post candidates in a single pass,
// so link and data-attribute posts keep their rendered order. A candidate's
// href wins over its data attributes when it carries both.
func (e *Engine) harvest(seen map[string]bool, collected []string, target int) []string {
	e.feed.Document().Find(`a[href*="/posts/"], [data-post-id], [data-id]`).EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if len(collected) >= target {
			return false
		}

		if href, ok := n.Attr("href"); ok && strings.Contains(href, "/posts/") {
			if id, ok := e.postID(href); ok {
				collected = e.admit(n, id, seen, collected)
			}
			return true
		}

		id := n.AttrOr("data-post-id", "")
		if id == "" {
			id = n.AttrOr("data-id", "")
		}
		if postIDPattern.MatchString(id) {
			collected = e.admit(n, id, seen, collected)
		}
		return true
	})

	return collected
}

// anchorCount is the growth signal: the number of post links currently in
// the document.
func (e *Engine) anchorCount() int {
	return e.feed.Document().Find(`a[href*="/posts/"]`).Length()
}

// awaitGrowth polls the document for new post links until the window
// elapses. It reports whether growth was observed. Cancellation is checked
// at poll boundaries only.
func (e *Engine) awaitGrowth(ctx context.Context, before int, window time.Duration) (bool, error) {
	deadline := time.Now().Add(window)
	for {
		if e.anchorCount() > before {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := retry.Wait(ctx, e.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

// Discover walks the feed until target matching IDs are collected or the
// load-attempt cap runs out. Every load counts against the cap whether or
// not it produced growth, so the loop is bounded even on a feed that never
// stops yielding. On cancellation it returns what it has collected so far
// without an error.
func (e *Engine) Discover(ctx context.Context, target int) ([]string, error) {
	// target <= 0 means everything discoverable before the attempt cap
	if target <= 0 {
		target = math.MaxInt
	}

	seen := make(map[string]bool)
	collected := e.harvest(seen, nil, target)

	attempts := 0
	for len(collected) < target && attempts < e.cfg.MaxLoadAttempts {
		if ctx.Err() != nil {
			break
		}
		attempts++

		before := e.anchorCount()

		hadControl, err := e.feed.LoadMore(ctx)
		if err != nil {
			e.logger.WarnWithFields("load-more request failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		window := e.cfg.LoadMoreWindow
		if !hadControl {
			if _, err := e.feed.Scroll(ctx); err != nil {
				e.logger.WarnWithFields("scroll request failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			window = e.cfg.ScrollWindow
		}

		grew, err := e.awaitGrowth(ctx, before, window)
		if err != nil {
			break
		}
		if !grew {
			e.logger.DebugWithFields("no new posts within wait window", map[string]interface{}{
				"attempt": attempts,
			})
		}

		collected = e.harvest(seen, collected, target)
	}

	e.logger.InfoWithFields("discovery finished", map[string]interface{}{
		"collected": len(collected),
		"target":    target,
	})

	return collected, nil
}
