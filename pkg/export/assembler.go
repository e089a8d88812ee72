// Package export turns one post into a self-contained offline HTML document
// with its gallery assets saved alongside.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ssarchive/pkg/config"
	"ssarchive/pkg/dates"
	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/hash"
	"ssarchive/pkg/logger"
	"ssarchive/pkg/records"
	"ssarchive/pkg/storage"
)

// Outcome classifies how an export attempt ended.
type Outcome string

const (
	OutcomeSaved            Outcome = "saved"
	OutcomeSkippedDate      Outcome = "skipped_date"
	OutcomeSkippedUnchanged Outcome = "skipped_unchanged"
)

// Result describes one export attempt.
type Result struct {
	Outcome  Outcome
	PostID   string
	FileName string
	Path     string
	Assets   int
}

// Assembler exports posts. It fetches the post page, downloads gallery
// originals, and assembles the offline document.
type Assembler struct {
	client *fetch.Client
	store  *records.Store
	files  *storage.Manager
	filter *dates.Filter
	cfg    *config.Config
	logger logger.Logger
}

// NewAssembler creates an assembler. filter may be nil when no date range
// is active.
func NewAssembler(client *fetch.Client, store *records.Store, files *storage.Manager, filter *dates.Filter, cfg *config.Config, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Assembler{
		client: client,
		store:  store,
		files:  files,
		filter: filter,
		cfg:    cfg,
		logger: log,
	}
}

// documentName is the stable file name a post is always saved under.
func documentName(id string) string {
	return fmt.Sprintf("post-%s.html", id)
}

// titleBase derives the human-readable base used for asset file names from
// the post's publication stamp, falling back to the stable post name.
func titleBase(doc *goquery.Document, id string) string {
	if raw, ok := dates.RawStamp(doc); ok {
		if stamp, ok := dates.CanonicalStamp(raw); ok {
			return stamp
		}
	}
	return "post-" + id
}

// ExportPost exports a single post. With skipDateCheck the active date
// range is ignored, which is how explicitly requested posts behave. The
// returned error is ErrCancelled when the user stopped the run.
func (a *Assembler) ExportPost(ctx context.Context, id string, skipDateCheck bool) (*Result, error) {
	if ctx.Err() != nil {
		return nil, errs.ErrCancelled
	}

	pageHTML, err := a.client.Text(ctx, "/posts/"+id)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParse,
			Message: fmt.Sprintf("failed to parse post %s: %v", id, err),
		}
	}

	if !skipDateCheck && a.filter.Active() {
		when, known := dates.FromDocument(doc)
		if !a.filter.Matches(when, known) {
			a.logger.InfoWithFields("post outside date range", map[string]interface{}{
				"post_id": id,
				"date":    when.Format("2006-01-02"),
			})
			return &Result{Outcome: OutcomeSkippedDate, PostID: id}, nil
		}
	}

	contentHash := hash.Fingerprint(extractContentText(doc))
	htmlName := documentName(id)
	base := titleBase(doc, id)

	if a.cfg.Export.OnlyNew {
		rec, err := a.store.Get(id)
		if err != nil {
			a.logger.WarnWithFields("failed to read export record", map[string]interface{}{
				"post_id": id,
				"error":   err.Error(),
			})
		} else if rec != nil && rec.ContentHash == contentHash {
			a.logger.InfoWithFields("post unchanged since last export", map[string]interface{}{
				"post_id": id,
				"file":    rec.FileName,
			})
			return &Result{Outcome: OutcomeSkippedUnchanged, PostID: id, FileName: rec.FileName}, nil
		}
	}

	a.logger.InfoWithFields("exporting post", map[string]interface{}{
		"post_id": id,
		"file":    htmlName,
	})

	items := a.galleryItems(doc)
	if len(items) == 0 {
		if upHTML, err := a.client.Text(ctx, fmt.Sprintf("/posts/%s/uploads", id)); err == nil {
			if frag, perr := goquery.NewDocumentFromReader(strings.NewReader(upHTML)); perr == nil {
				items = a.galleryItems(frag)
			}
		} else {
			a.logger.WarnWithFields("failed to fetch uploads fragment", map[string]interface{}{
				"post_id": id,
				"error":   err.Error(),
			})
		}
	}

	assets, err := a.downloadAssets(ctx, items, base)
	if err != nil {
		return nil, err
	}

	headHTML := a.buildHead(ctx, doc)
	bodyHTML := a.buildBody(doc, assets)

	lang := doc.Find("html").First().AttrOr("lang", "cs")
	final := strings.Join([]string{
		"<!doctype html>",
		fmt.Sprintf(`<html lang="%s">`, lang),
		headHTML,
		"<body>",
		bodyHTML,
		"</body></html>",
	}, "\n")

	path, err := a.files.SaveHTML(htmlName, final)
	if err != nil {
		return nil, err
	}

	if err := a.store.Put(&records.Record{
		PostID:      id,
		ContentHash: contentHash,
		FileName:    htmlName,
		SavedAt:     time.Now(),
	}); err != nil {
		a.logger.WarnWithFields("failed to save export record", map[string]interface{}{
			"post_id": id,
			"error":   err.Error(),
		})
	}

	return &Result{
		Outcome:  OutcomeSaved,
		PostID:   id,
		FileName: htmlName,
		Path:     path,
		Assets:   len(assets),
	}, nil
}
