package logger

import (
	"fmt"
	"testing"
)

func TestFeedOrderAndSeverity(t *testing.T) {
	feed := NewFeed(10, nil)

	feed.Info("starting")
	feed.Success("saved post-1.html")
	feed.Warning("post 2 unchanged")
	feed.Error("post 3 failed")

	entries := feed.Entries()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	want := []struct {
		sev Severity
		msg string
	}{
		{SeverityInfo, "starting"},
		{SeveritySuccess, "saved post-1.html"},
		{SeverityWarning, "post 2 unchanged"},
		{SeverityError, "post 3 failed"},
	}
	for i, w := range want {
		if entries[i].Severity != w.sev || entries[i].Message != w.msg {
			t.Errorf("entries[%d] = %+v, want %s %q", i, entries[i], w.sev, w.msg)
		}
		if entries[i].Time.IsZero() {
			t.Errorf("entries[%d] has no timestamp", i)
		}
	}
}

func TestFeedDropsOldestOverCap(t *testing.T) {
	feed := NewFeed(3, nil)

	for i := 1; i <= 5; i++ {
		feed.Info(fmt.Sprintf("message %d", i))
	}

	entries := feed.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want the cap of 3", len(entries))
	}
	if entries[0].Message != "message 3" || entries[2].Message != "message 5" {
		t.Errorf("wrong window retained: %q .. %q", entries[0].Message, entries[2].Message)
	}
	if feed.Len() != 3 {
		t.Errorf("Len = %d, want 3", feed.Len())
	}
}

func TestFeedZeroCapUsesDefault(t *testing.T) {
	feed := NewFeed(0, nil)
	feed.Info("one")
	if feed.Len() != 1 {
		t.Errorf("Len = %d, want 1", feed.Len())
	}
}

func TestFeedEntriesReturnsCopy(t *testing.T) {
	feed := NewFeed(10, nil)
	feed.Info("original")

	entries := feed.Entries()
	entries[0].Message = "mutated"

	if feed.Entries()[0].Message != "original" {
		t.Error("Entries must return an independent copy")
	}
}
