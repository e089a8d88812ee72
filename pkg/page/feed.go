// Package page models a paginated infinite-scroll feed as an accumulating
// document. Discovery observes the document for growth while the feed pulls
// further chunks from the site.
package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/logger"
)

// moreControlSelectors are tried in order when looking for the feed's
// load-more control.
var moreControlSelectors = []string{
	".posts-more",
	".posts__more",
	`[data-role="posts-more"]`,
	`[data-action="posts-more"]`,
}

// Feed is a growing collection of feed markup. Document returns the
// accumulated view; LoadMore activates the feed's load-more control and
// Scroll nudges the feed the way scrolling to the bottom would. Both report
// whether the mechanism was available, not whether new content arrived.
// Callers detect arrival by re-inspecting Document.
type Feed interface {
	Document() *goquery.Document
	LoadMore(ctx context.Context) (bool, error)
	Scroll(ctx context.Context) (bool, error)
	BaseURL() string
}

// RemoteFeed pulls feed chunks over HTTP. Each LoadMore follows the current
// load-more control's target and splices the returned markup into the
// accumulated document; Scroll falls back to page-number pagination for
// feeds that render no control.
type RemoteFeed struct {
	client  *fetch.Client
	logger  logger.Logger
	feedURL string
	doc     *goquery.Document
	page    int
}

// NewRemoteFeed fetches the first page of the feed at feedURL.
func NewRemoteFeed(ctx context.Context, client *fetch.Client, feedURL string, log logger.Logger) (*RemoteFeed, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	html, err := client.Text(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParse,
			Message: fmt.Sprintf("failed to parse feed page: %v", err),
		}
	}

	return &RemoteFeed{
		client:  client,
		logger:  log,
		feedURL: client.Abs(feedURL),
		doc:     doc,
		page:    1,
	}, nil
}

// Document returns the accumulated feed document.
func (f *RemoteFeed) Document() *goquery.Document {
	return f.doc
}

// BaseURL returns the absolute feed URL.
func (f *RemoteFeed) BaseURL() string {
	return f.feedURL
}

// moreTarget finds the load-more control and extracts its target URL. The
// control is either a link itself or wraps one.
func (f *RemoteFeed) moreTarget() (string, bool) {
	for _, sel := range moreControlSelectors {
		control := f.doc.Find(sel).First()
		if control.Length() == 0 {
			continue
		}
		if href, ok := control.Attr("href"); ok && href != "" {
			return href, true
		}
		if href, ok := control.Find("a[href]").First().Attr("href"); ok && href != "" {
			return href, true
		}
	}
	return "", false
}

// LoadMore follows the load-more control if the feed renders one. The
// control is consumed before splicing so a chunk that carries its own
// control replaces it rather than duplicating it.
func (f *RemoteFeed) LoadMore(ctx context.Context) (bool, error) {
	target, ok := f.moreTarget()
	if !ok {
		return false, nil
	}

	f.logger.DebugWithFields("following load-more control", map[string]interface{}{
		"target": target,
	})

	for _, sel := range moreControlSelectors {
		f.doc.Find(sel).Remove()
	}

	if err := f.splice(ctx, target); err != nil {
		return true, err
	}
	return true, nil
}

// Scroll approximates scrolling to the feed's bottom by requesting the next
// page number. It reports false once the feed stops yielding post links.
func (f *RemoteFeed) Scroll(ctx context.Context) (bool, error) {
	next := f.page + 1
	sep := "?"
	if strings.Contains(f.feedURL, "?") {
		sep = "&"
	}
	target := fmt.Sprintf("%s%spage=%d", f.feedURL, sep, next)

	before := f.doc.Find(`a[href*="/posts/"]`).Length()
	if err := f.splice(ctx, target); err != nil {
		return false, err
	}
	f.page = next

	return f.doc.Find(`a[href*="/posts/"]`).Length() > before, nil
}

// splice fetches a feed chunk and appends its body content to the
// accumulated document.
func (f *RemoteFeed) splice(ctx context.Context, target string) error {
	html, err := f.client.Text(ctx, target)
	if err != nil {
		return err
	}

	chunk, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParse,
			Message: fmt.Sprintf("failed to parse feed chunk: %v", err),
		}
	}

	f.doc.Find("body").First().AppendSelection(chunk.Find("body").Children())
	return nil
}

// StaticFeed serves a fixed sequence of markup chunks. It backs tests and
// dry runs where no site is reachable.
type StaticFeed struct {
	doc    *goquery.Document
	chunks []string
	base   string
}

// NewStaticFeed builds a feed from initial markup and a queue of chunks
// released one per LoadMore or Scroll call.
func NewStaticFeed(initial string, chunks []string, base string) (*StaticFeed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(initial))
	if err != nil {
		return nil, err
	}
	return &StaticFeed{doc: doc, chunks: chunks, base: base}, nil
}

func (f *StaticFeed) Document() *goquery.Document { return f.doc }

func (f *StaticFeed) BaseURL() string { return f.base }

func (f *StaticFeed) LoadMore(ctx context.Context) (bool, error) {
	return f.release()
}

func (f *StaticFeed) Scroll(ctx context.Context) (bool, error) {
	return f.release()
}

func (f *StaticFeed) release() (bool, error) {
	if len(f.chunks) == 0 {
		return false, nil
	}
	chunk, err := goquery.NewDocumentFromReader(strings.NewReader(f.chunks[0]))
	if err != nil {
		return false, err
	}
	f.chunks = f.chunks[1:]
	f.doc.Find("body").First().AppendSelection(chunk.Find("body").Children())
	return true, nil
}
