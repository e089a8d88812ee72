package dates

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{
			name: "czech day first",
			raw:  "5. ledna 2024 15:45",
			want: time.Date(2024, time.January, 5, 15, 45, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "czech day first with accented month",
			raw:  "1. října 2023 8:05",
			want: time.Date(2023, time.October, 1, 8, 5, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "month first afternoon marker",
			raw:  "Jan 5, 2024 3:45 odpoledne",
			want: time.Date(2024, time.January, 5, 15, 45, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "month first noon stays noon",
			raw:  "Dec 12, 2023 12:10 odpoledne",
			want: time.Date(2023, time.December, 12, 12, 10, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "month first midnight marker",
			raw:  "Dec 12, 2023 12:10 dopoledne",
			want: time.Date(2023, time.December, 12, 0, 10, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "iso fallback",
			raw:  "2024-01-02 10:30",
			want: time.Date(2024, time.January, 2, 10, 30, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "connective word stripped",
			raw:  "Jan 2, 2006 at 15:04",
			want: time.Date(2006, time.January, 2, 15, 4, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "extra whitespace collapsed",
			raw:  "  5.   ledna   2024   15:45  ",
			want: time.Date(2024, time.January, 5, 15, 45, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "out of range day rejected",
			raw:  "32. ledna 2024 10:00",
			ok:   false,
		},
		{
			name: "unknown month rejected",
			raw:  "5. blobna 2024 10:00",
			ok:   false,
		},
		{
			name: "empty",
			raw:  "",
			ok:   false,
		},
		{
			name: "garbage",
			raw:  "not a date at all",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalStamp(t *testing.T) {
	stamp, ok := CanonicalStamp("5. ledna 2024 15:45")
	if !ok {
		t.Fatal("expected canonical stamp")
	}
	if stamp != "2024-01-05 15.45" {
		t.Errorf("CanonicalStamp = %q, want %q", stamp, "2024-01-05 15.45")
	}

	if _, ok := CanonicalStamp("2024-01-02 10:30"); ok {
		t.Error("generic layouts should not produce canonical stamps")
	}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		nil_ bool
	}{
		{name: "both absent", from: "", to: "", nil_: true},
		{name: "both malformed", from: "bogus", to: "also bogus", nil_: true},
		{name: "inverted range degrades to no filter", from: "2024-02-01", to: "2024-01-01", nil_: true},
		{name: "from only", from: "2024-01-01", to: "", nil_: false},
		{name: "to only", from: "", to: "2024-01-31", nil_: false},
		{name: "valid range", from: "2024-01-01", to: "2024-01-31", nil_: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := BuildFilter(tt.from, tt.to)
			if (f == nil) != tt.nil_ {
				t.Errorf("BuildFilter(%q, %q) nil = %v, want %v", tt.from, tt.to, f == nil, tt.nil_)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	f := BuildFilter("2024-01-10", "2024-01-20")
	if f == nil {
		t.Fatal("expected a filter")
	}

	tests := []struct {
		name  string
		when  time.Time
		known bool
		want  bool
	}{
		{"inside range", time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local), true, true},
		{"start of range inclusive", time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local), true, true},
		{"end of range inclusive", time.Date(2024, 1, 20, 23, 59, 0, 0, time.Local), true, true},
		{"before range", time.Date(2024, 1, 9, 23, 59, 0, 0, time.Local), true, false},
		{"after range", time.Date(2024, 1, 21, 0, 0, 0, 0, time.Local), true, false},
		{"unknown date always matches", time.Time{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.when, tt.known); got != tt.want {
				t.Errorf("Matches(%v, known=%v) = %v, want %v", tt.when, tt.known, got, tt.want)
			}
		})
	}

	var nilFilter *Filter
	if !nilFilter.Matches(time.Date(1990, 1, 1, 0, 0, 0, 0, time.Local), true) {
		t.Error("nil filter must match everything")
	}
	if nilFilter.Active() {
		t.Error("nil filter must not be active")
	}
}

func TestFromElement(t *testing.T) {
	html := `<html><body>
		<div class="post" data-post-id="1">
			<div class="post-date">5. ledna 2024 15:45</div>
			<a href="/someprofile/posts/100">open</a>
		</div>
		<div class="post">
			<a href="/someprofile/posts/200">no date here</a>
		</div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	dated := doc.Find(`a[href="/someprofile/posts/100"]`)
	when, known := FromElement(dated)
	if !known {
		t.Fatal("expected a known date from the surrounding card")
	}
	want := time.Date(2024, time.January, 5, 15, 45, 0, 0, time.Local)
	if !when.Equal(want) {
		t.Errorf("FromElement = %v, want %v", when, want)
	}

	undated := doc.Find(`a[href="/someprofile/posts/200"]`)
	if _, known := FromElement(undated); known {
		t.Error("card without a timestamp should report unknown")
	}
}

func TestFromDocumentPrefersDatetimeAttribute(t *testing.T) {
	html := `<html><body>
		<div class="section for-single_post">
			<time datetime="2024-03-01T09:30:00Z">something unparseable</time>
		</div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	when, known := FromDocument(doc)
	if !known {
		t.Fatal("expected a known date")
	}
	want := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	if !when.Equal(want) {
		t.Errorf("FromDocument = %v, want %v", when, want)
	}
}

func TestRawStamp(t *testing.T) {
	html := `<html><body>
		<div class="section-title_date"> 5. ledna 2024 15:45 </div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	raw, ok := RawStamp(doc)
	if !ok {
		t.Fatal("expected a raw stamp")
	}
	if raw != "5. ledna 2024 15:45" {
		t.Errorf("RawStamp = %q", raw)
	}

	empty, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	if _, ok := RawStamp(empty); ok {
		t.Error("document without stamps should report none")
	}
}
