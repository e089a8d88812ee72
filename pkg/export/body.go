package export

import (
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// postRootSelectors locate the single-post container in a fetched page,
// tried in order. The document body is the last resort.
var postRootSelectors = []string{
	".section.for-single_post",
	".for-single_post.section",
	".post.wrapper.is-single",
	".post.wrapper",
}

// contentSelectors locate the text content used for change fingerprinting.
var contentSelectors = []string{
	".post__content",
	".post-content",
	".post.body",
	".post-body",
	".post",
	".section-body",
}

// cruftSelectors are interactive or gated elements stripped from the
// exported copy.
var cruftSelectors = []string{
	".post-warning_mature",
	".vertical_more_menu.is-small",
	".comments-row.for-new_comment.for-single_post",
	".comments-row.for-new_comment",
	".post-uploads:not(.for-youtube)",
}

// galleryHostSelectors pick where an injected gallery container lands when
// the post does not already carry one.
var galleryHostSelectors = []string{
	".post__content",
	".post-content",
	".post-body",
	".post.wrapper",
	".post",
}

// extractContentText returns the post's text content with whitespace
// collapsed, for fingerprinting. An empty string means no content root was
// found.
func extractContentText(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		root := doc.Find(sel).First()
		if root.Length() > 0 {
			return strings.Join(strings.Fields(root.Text()), " ")
		}
	}
	return ""
}

// postRoot finds the single-post container, falling back to body.
func postRoot(doc *goquery.Document) *goquery.Selection {
	for _, sel := range postRootSelectors {
		if root := doc.Find(sel).First(); root.Length() > 0 {
			return root
		}
	}
	return doc.Find("body").First()
}

// injectGallery replaces the post's upload block with previews of the
// downloaded assets. Each preview embeds a data URI image and links to the
// file saved next to the document.
func injectGallery(root *goquery.Selection, assets []galleryAsset) {
	cont := root.Find(".post-uploads.for-youtube").First()
	if cont.Length() == 0 {
		host := root
		for _, sel := range galleryHostSelectors {
			if h := root.Find(sel).First(); h.Length() > 0 {
				host = h
				break
			}
		}
		host.AppendHtml(`<div class="post-uploads for-youtube"></div>`)
		cont = host.Find(".post-uploads.for-youtube").Last()
	}

	cont.Empty()
	for _, asset := range assets {
		href := (&url.URL{Path: asset.LocalName}).EscapedPath()
		name := html.EscapeString(asset.DisplayName)
		cont.AppendHtml(
			`<div class="preview">` +
				`<a class="preview__link" href="` + href + `" download="">` +
				`<img src="` + asset.DataURI + `" alt="` + name + `"/>` +
				`</a>` +
				`<div class="preview__filename"><a href="` + href + `" download>` + name + `</a></div>` +
				`</div>`)
	}
}

// buildBody clones the post root, strips cruft, absolutizes references,
// injects downloaded gallery previews, and wraps the result in the
// centering container the layout style targets.
func (a *Assembler) buildBody(doc *goquery.Document, assets []galleryAsset) string {
	clone := postRoot(doc).Clone()

	for _, sel := range cruftSelectors {
		clone.Find(sel).Remove()
	}
	a.absolutizeAttrs(clone)

	if len(assets) > 0 {
		injectGallery(clone, assets)
	}

	outer, err := goquery.OuterHtml(clone)
	if err != nil {
		outer = ""
	}
	return `<div class="ssx-center">` + outer + `</div>`
}
