package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ssarchive/pkg/config"
	"ssarchive/pkg/dates"
	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/records"
	"ssarchive/pkg/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfakepixels")

const postPage = `<html lang="en">
<head>
	<title>My Post</title>
	<link rel="stylesheet" href="/app.css">
</head>
<body>
	<div class="post wrapper">
		<div class="post-date">5. ledna 2024 15:45</div>
		<div class="post-content">Hello world content</div>
		<div data-gallery='[{"url":"/post_uploads?payload=abc","id":1,"original_filename":"photo.png"}]'></div>
		<div class="comments-row for-new_comment">comment box</div>
	</div>
</body>
</html>`

type exportFixture struct {
	assembler    *Assembler
	store        *records.Store
	outputDir    string
	assetFetches *int32
}

func newFixture(t *testing.T, mux *http.ServeMux, filter *dates.Filter) *exportFixture {
	t.Helper()

	var assetFetches int32
	mux.HandleFunc("/app.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{color:red}"))
	})
	mux.HandleFunc("/post_uploads", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&assetFetches, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	host, _ := url.Parse(server.URL)

	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = server.URL
	cfg.Site.Hosts = []string{host.Host}
	cfg.Site.AssetHosts = nil
	cfg.Fetch.RetryDelay = time.Millisecond
	cfg.Export.AssetDelay = 0
	cfg.Export.PostDelay = 0

	dir := t.TempDir()
	outputDir := filepath.Join(dir, "archive")
	cfg.Export.OutputDir = outputDir
	cfg.Export.FallbackDir = filepath.Join(dir, "fallback")

	client, err := fetch.NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	store, err := records.Open(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	files := storage.NewManager(cfg.Export.OutputDir, cfg.Export.FallbackDir, nil)

	return &exportFixture{
		assembler:    NewAssembler(client, store, files, filter, cfg, nil),
		store:        store,
		outputDir:    outputDir,
		assetFetches: &assetFetches,
	}
}

func TestExportPostSavesDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/777", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(postPage))
	})
	fx := newFixture(t, mux, nil)

	res, err := fx.assembler.ExportPost(context.Background(), "777", false)
	if err != nil {
		t.Fatalf("ExportPost failed: %v", err)
	}
	if res.Outcome != OutcomeSaved {
		t.Fatalf("Outcome = %s, want %s", res.Outcome, OutcomeSaved)
	}
	if res.FileName != "post-777.html" {
		t.Errorf("FileName = %s", res.FileName)
	}
	if res.Assets != 1 {
		t.Errorf("Assets = %d, want 1", res.Assets)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"<!doctype html>",
		`<html lang="en">`,
		"<style>body{color:red}</style>",
		`<div class="ssx-center">`,
		"data:image/png;base64,",
		`href="2024-01-05%2015.45_1.png"`,
		"photo.png",
		"Hello world content",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(html, "comment box") {
		t.Error("comment form survived export")
	}

	asset, err := os.ReadFile(filepath.Join(fx.outputDir, "2024-01-05 15.45_1.png"))
	if err != nil {
		t.Fatalf("asset not saved alongside the document: %v", err)
	}
	if string(asset) != string(pngBytes) {
		t.Error("asset content mismatch")
	}

	rec, err := fx.store.Get("777")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.FileName != "post-777.html" {
		t.Errorf("record not written: %+v", rec)
	}
}

func TestExportPostSkipsUnchanged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/777", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(postPage))
	})
	fx := newFixture(t, mux, nil)

	if _, err := fx.assembler.ExportPost(context.Background(), "777", false); err != nil {
		t.Fatal(err)
	}
	fetchesAfterFirst := atomic.LoadInt32(fx.assetFetches)

	res, err := fx.assembler.ExportPost(context.Background(), "777", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSkippedUnchanged {
		t.Fatalf("Outcome = %s, want %s", res.Outcome, OutcomeSkippedUnchanged)
	}
	if res.FileName != "post-777.html" {
		t.Errorf("FileName = %s", res.FileName)
	}
	if got := atomic.LoadInt32(fx.assetFetches); got != fetchesAfterFirst {
		t.Errorf("unchanged post must not touch assets, fetches went %d -> %d", fetchesAfterFirst, got)
	}
}

func TestExportPostReexportsChangedContent(t *testing.T) {
	content := "first version"
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/5", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>t</title></head><body><div class="post wrapper"><div class="post-content">` + content + `</div></body></html>`))
	})
	fx := newFixture(t, mux, nil)

	if _, err := fx.assembler.ExportPost(context.Background(), "5", false); err != nil {
		t.Fatal(err)
	}

	content = "second version"
	res, err := fx.assembler.ExportPost(context.Background(), "5", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSaved {
		t.Errorf("changed content must re-export, got %s", res.Outcome)
	}
}

func TestExportPostDateFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/777", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(postPage))
	})
	filter := dates.BuildFilter("2025-01-01", "2025-12-31")
	fx := newFixture(t, mux, filter)

	res, err := fx.assembler.ExportPost(context.Background(), "777", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSkippedDate {
		t.Fatalf("Outcome = %s, want %s", res.Outcome, OutcomeSkippedDate)
	}

	// an explicitly requested post ignores the range
	res, err = fx.assembler.ExportPost(context.Background(), "777", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSaved {
		t.Errorf("skipDateCheck export = %s, want %s", res.Outcome, OutcomeSaved)
	}
}

func TestExportPostUploadsFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/888", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>t</title></head><body><div class="post wrapper"><div class="post-content">text only</div></body></html>`))
	})
	mux.HandleFunc("/posts/888/uploads", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div data-gallery='[{"url":"/post_uploads?payload=xyz","id":2,"original_filename":"pic.jpg"}]'></div>`))
	})
	fx := newFixture(t, mux, nil)

	res, err := fx.assembler.ExportPost(context.Background(), "888", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Assets != 1 {
		t.Errorf("Assets = %d, want 1 from the uploads fragment", res.Assets)
	}

	// no date stamp on the page, so assets fall back to the post name
	if _, err := os.ReadFile(filepath.Join(fx.outputDir, "post-888_1.jpg")); err != nil {
		t.Errorf("fallback-named asset missing: %v", err)
	}
}

func TestExportPostStyleCloseTagStaysLinked(t *testing.T) {
	// a sheet carrying a literal close tag would truncate the style element
	// and splice the remainder into the document
	hostile := `body{color:blue}</style><script>alert(1)</script>`
	mux := http.NewServeMux()
	mux.HandleFunc("/hostile.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(hostile))
	})
	mux.HandleFunc("/posts/9", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>t</title><link rel="stylesheet" href="/hostile.css"></head>` +
			`<body><div class="post wrapper"><div class="post-content">text</div></body></html>`))
	})
	fx := newFixture(t, mux, nil)

	res, err := fx.assembler.ExportPost(context.Background(), "9", false)
	if err != nil {
		t.Fatalf("ExportPost failed: %v", err)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	if strings.Contains(html, "alert(1)") {
		t.Error("stylesheet payload spliced into the document")
	}
	if !strings.Contains(html, `rel="stylesheet"`) || !strings.Contains(html, "/hostile.css") {
		t.Error("sheet should survive as an absolutized link")
	}
}

func TestExportPostNotFound(t *testing.T) {
	fx := newFixture(t, http.NewServeMux(), nil)

	_, err := fx.assembler.ExportPost(context.Background(), "404404", false)
	if err == nil {
		t.Fatal("expected an error for a missing post")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeNotFound {
		t.Errorf("error = %v, want a not-found classification", err)
	}
}

func TestExportPostCancelled(t *testing.T) {
	fx := newFixture(t, http.NewServeMux(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.assembler.ExportPost(ctx, "777", false)
	if !errs.IsCancelled(err) {
		t.Errorf("expected the cancellation sentinel, got %v", err)
	}
}

func TestAssetExt(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"photo.png", "png"},
		{"photo.JPEG", "jpeg"},
		{"shot.webp?width=200", "webp"},
		{"archive.zip", "jpg"},
		{"", "jpg"},
		{"https://cdn.example/img.avif", "avif"},
	}
	for _, tt := range tests {
		if got := assetExt(tt.input); got != tt.want {
			t.Errorf("assetExt(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
