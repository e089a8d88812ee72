package export

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ssarchive/pkg/retry"
)

// Layout fallbacks applied when the source page exposes no measurable
// section padding.
const (
	defaultSectionPadding = "15px"
	defaultContentWidth   = "1000px"
	stylesheetInlineDelay = 50 * time.Millisecond
)

// layoutStyle is the fit override appended to every exported head. It pins
// the content column to a readable width and keeps embedded media inside it.
func layoutStyle() string {
	return fmt.Sprintf(`
      :root, html, body {
        margin: 0;
        padding: 0;
        width: 100%%;
        min-width: 0 !important;
        max-width: %[1]s !important;
        box-sizing: border-box;
      }
      *, *::before, *::after {
        box-sizing: border-box;
      }
      body {
        display: block !important;
        margin-left: auto !important;
        margin-right: auto !important;
        overflow-x: hidden !important;
      }
      .ssx-center {
        max-width: %[1]s !important;
        width: 100%% !important;
        margin: 0 auto !important;
        padding: 0 16px;
      }
      .ssx-center > * {
        max-width: 100%%;
        width: 100%% !important;
        margin-left: auto !important;
        margin-right: auto !important;
      }
      .section-body img, .section-body video, .section-body canvas, .section-body iframe,
      .post-uploads img, .trix-content img, .post-content img, .post__content img {
        max-width: 100%% !important;
        height: auto !important;
      }
      .section.for-single_post, .for-single_post.section, .post.wrapper.is-single, .post.wrapper {
        margin-left: auto !important;
        margin-right: auto !important;
        max-width: %[1]s !important;
        width: 100%% !important;
        padding-left: %[2]s !important;
        padding-right: %[2]s !important;
      }
      .post-uploads.for-youtube .preview .preview__link img {
        display: block;
        width: 100%%;
        height: auto;
      }
      .post-uploads.for-youtube .preview .preview__filename {
        margin-top: 6px;
        font: 12px/1.3 system-ui, Segoe UI, Roboto, Arial;
        word-break: break-word;
      }
`, defaultContentWidth, defaultSectionPadding)
}

// absolutizeAttrs rewrites every href and src under scope to an absolute URL.
func (a *Assembler) absolutizeAttrs(scope *goquery.Selection) {
	scope.Find("[href]").Each(func(_ int, n *goquery.Selection) {
		n.SetAttr("href", a.client.Abs(n.AttrOr("href", "")))
	})
	scope.Find("[src]").Each(func(_ int, n *goquery.Selection) {
		n.SetAttr("src", a.client.Abs(n.AttrOr("src", "")))
	})
}

// buildHead clones the fetched page's head, absolutizes its references,
// inlines stylesheets served from allowed hosts, and appends the layout
// override. Stylesheets that fail to fetch stay as absolutized links so the
// document still renders online.
func (a *Assembler) buildHead(ctx context.Context, doc *goquery.Document) string {
	head := doc.Find("head").First().Clone()
	a.absolutizeAttrs(head)

	head.Find(`link[rel="stylesheet"][href]`).EachWithBreak(func(_ int, ln *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}

		href := ln.AttrOr("href", "")
		if href == "" || !a.client.AllowedHost(href) {
			return true
		}

		css, err := a.client.Text(ctx, href)
		if err != nil {
			a.logger.WarnWithFields("failed to inline stylesheet", map[string]interface{}{
				"url":   href,
				"error": err.Error(),
			})
			return true
		}

		// A literal close tag inside the sheet would truncate the style
		// element; leave such sheets as links.
		if strings.Contains(css, "</style") {
			a.logger.WarnWithFields("stylesheet not inlined, contains close tag", map[string]interface{}{
				"url": href,
			})
			return true
		}

		ln.ReplaceWithHtml("<style>" + css + "</style>")
		a.logger.DebugWithFields("stylesheet inlined", map[string]interface{}{
			"url": href,
		})
		return retry.Wait(ctx, stylesheetInlineDelay) == nil
	})

	head.AppendHtml("<style>" + layoutStyle() + "</style>")

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Post"
	}

	inner, err := head.Html()
	if err != nil {
		inner = ""
	}

	var b strings.Builder
	b.WriteString("<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width,initial-scale=1\">\n")
	b.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	b.WriteString(inner)
	b.WriteString("\n</head>")
	return b.String()
}
