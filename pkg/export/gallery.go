package export

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/retry"
	"ssarchive/pkg/storage"
)

var (
	payloadURLPattern = regexp.MustCompile(`/post_uploads\?payload=`)
	assetExtPattern   = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|bmp|tiff?|heic|avif)$`)
)

// GalleryItem is one entry of a post's data-gallery attribute.
type GalleryItem struct {
	URL              string `json:"url"`
	ID               int64  `json:"id"`
	OriginalFilename string `json:"original_filename"`
}

// galleryAsset is a downloaded gallery item: the file it was saved under,
// the display name shown in the document, and a data URI preview.
type galleryAsset struct {
	LocalName   string
	DisplayName string
	DataURI     string
}

// galleryItems collects every parseable data-gallery entry in the document.
// Malformed JSON in one attribute does not abort the rest.
func (a *Assembler) galleryItems(doc *goquery.Document) []GalleryItem {
	var items []GalleryItem
	doc.Find("[data-gallery]").Each(func(_ int, n *goquery.Selection) {
		raw := n.AttrOr("data-gallery", "[]")
		var arr []GalleryItem
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			a.logger.WarnWithFields("failed to parse gallery attribute", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		items = append(items, arr...)
	})
	return items
}

// resolveOriginalURL turns a gallery item into the URL of its full-size
// original. Canonical payload URLs are used verbatim; anything else is
// resolved by fetching the item page and reading its original link, with
// the absolutized item URL as last resort.
func (a *Assembler) resolveOriginalURL(ctx context.Context, item GalleryItem) string {
	if item.URL != "" && payloadURLPattern.MatchString(item.URL) {
		return a.client.Abs(item.URL)
	}

	first := item.URL
	if first == "" && item.ID != 0 {
		first = fmt.Sprintf("/post_uploads/%d", item.ID)
	}
	if first == "" {
		return ""
	}

	html, err := a.client.Text(ctx, first)
	if err != nil {
		return a.client.Abs(first)
	}
	frag, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return a.client.Abs(first)
	}
	if href, ok := frag.Find("a.gallery-image_original_link").First().Attr("href"); ok && href != "" {
		return a.client.Abs(href)
	}
	return a.client.Abs(first)
}

// assetExt picks the file extension from the original filename or URL,
// defaulting to jpg.
func assetExt(name string) string {
	clean := strings.SplitN(name, "?", 2)[0]
	if m := assetExtPattern.FindStringSubmatch(clean); m != nil {
		return strings.ToLower(m[1])
	}
	return "jpg"
}

// downloadAssets fetches every gallery item sequentially, saving each next
// to the post document and keeping a data URI preview. A failed item is
// logged and skipped; numbering only advances on success. Cancellation is
// honored between items.
func (a *Assembler) downloadAssets(ctx context.Context, items []GalleryItem, base string) ([]galleryAsset, error) {
	var assets []galleryAsset
	i := 1

	for _, item := range items {
		if ctx.Err() != nil {
			return assets, errs.ErrCancelled
		}

		orig := a.resolveOriginalURL(ctx, item)
		if orig == "" {
			a.logger.WarnWithFields("cannot determine original URL for gallery item", map[string]interface{}{
				"index": i,
			})
			continue
		}
		if !a.client.AllowedHost(orig) {
			a.logger.WarnWithFields("gallery item host not allowed", map[string]interface{}{
				"url": orig,
			})
			continue
		}

		data, err := a.client.Binary(ctx, orig)
		if err != nil {
			a.logger.WarnWithFields("failed to download gallery item", map[string]interface{}{
				"url":   orig,
				"error": err.Error(),
			})
			continue
		}

		ext := assetExt(firstNonEmpty(item.OriginalFilename, orig))
		localName := storage.SanitizeFilename(fmt.Sprintf("%s_%d.%s", base, i, ext))

		if _, err := a.files.Save(localName, data); err != nil {
			a.logger.WarnWithFields("failed to save gallery item", map[string]interface{}{
				"file":  localName,
				"error": err.Error(),
			})
			continue
		}

		display := item.OriginalFilename
		if display == "" {
			display = fmt.Sprintf("image_%d.%s", i, ext)
		}

		assets = append(assets, galleryAsset{
			LocalName:   localName,
			DisplayName: display,
			DataURI:     fetch.DataURI(data),
		})

		a.logger.DebugWithFields("gallery item saved", map[string]interface{}{
			"file": localName,
		})
		i++

		if err := retry.Wait(ctx, a.cfg.Export.AssetDelay); err != nil {
			return assets, errs.ErrCancelled
		}
	}

	return assets, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
