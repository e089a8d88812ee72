// Package run orchestrates discovery and export into complete runs with a
// single-owner cancellation model.
package run

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"ssarchive/pkg/config"
	"ssarchive/pkg/dates"
	"ssarchive/pkg/discover"
	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/export"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/logger"
	"ssarchive/pkg/page"
	"ssarchive/pkg/records"
	"ssarchive/pkg/retry"
	"ssarchive/pkg/storage"
)

var postIDPattern = regexp.MustCompile(`^[0-9]+$`)

// Summary totals one batch run.
type Summary struct {
	Discovered       int
	Saved            int
	SkippedDate      int
	SkippedUnchanged int
	Failed           int
	Cancelled        bool
}

// Session runs exports. At most one run is active at a time; Stop requests
// cooperative cancellation of the active run, which winds down at its next
// checkpoint rather than mid-write.
type Session struct {
	cfg       *config.Config
	logger    logger.Logger
	feedLog   *logger.Feed
	client    *fetch.Client
	filter    *dates.Filter
	assembler *export.Assembler

	// newFeed is swappable so runs can be driven from fixture feeds.
	newFeed func(ctx context.Context, feedURL string) (page.Feed, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New wires a session from its collaborators. The date filter comes from
// the configured range; a malformed or inverted range degrades to no
// filter with a warning.
func New(cfg *config.Config, client *fetch.Client, store *records.Store, files *storage.Manager, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetLogger()
	}

	filter := dates.BuildFilter(cfg.Filter.From, cfg.Filter.To)
	if (cfg.Filter.From != "" || cfg.Filter.To != "") && !filter.Active() {
		log.WarnWithFields("date range ignored", map[string]interface{}{
			"from": cfg.Filter.From,
			"to":   cfg.Filter.To,
		})
	}

	s := &Session{
		cfg:       cfg,
		logger:    log,
		feedLog:   logger.NewFeed(logger.DefaultFeedCap, log),
		client:    client,
		filter:    filter,
		assembler: export.NewAssembler(client, store, files, filter, cfg, log),
	}
	s.newFeed = func(ctx context.Context, feedURL string) (page.Feed, error) {
		return page.NewRemoteFeed(ctx, client, feedURL, log)
	}
	return s
}

// Log returns the session's activity feed.
func (s *Session) Log() *logger.Feed {
	return s.feedLog
}

// Filter returns the active date filter, nil when none.
func (s *Session) Filter() *dates.Filter {
	return s.filter
}

// begin claims the run slot and derives the cancellable run context.
func (s *Session) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("a run is already active")
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return runCtx, nil
}

// end releases the run slot.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

// Running reports whether a run is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop requests cancellation of the active run. It returns immediately;
// the run stops at its next checkpoint.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.feedLog.Warning("stop requested")
	}
}

// RunSingle exports one explicitly named post. The date range does not
// apply: asking for a post by ID is an explicit override.
func (s *Session) RunSingle(ctx context.Context, id string) (*export.Result, error) {
	if !postIDPattern.MatchString(id) {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParse,
			Message: fmt.Sprintf("invalid post ID: %q", id),
		}
	}

	runCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.end()

	res, err := s.assembler.ExportPost(runCtx, id, true)
	if err != nil {
		s.feedLog.Error(fmt.Sprintf("post %s failed: %v", id, err))
		return nil, err
	}

	switch res.Outcome {
	case export.OutcomeSaved:
		s.feedLog.Success(fmt.Sprintf("saved %s (%d assets)", res.FileName, res.Assets))
	case export.OutcomeSkippedUnchanged:
		s.feedLog.Warning(fmt.Sprintf("post %s unchanged, skipped", id))
	}
	return res, nil
}

// RunBatch discovers up to target posts from the feed and exports them
// sequentially. Cancellation ends the run cleanly with a partial summary.
func (s *Session) RunBatch(ctx context.Context, feedURL string, target int) (*Summary, error) {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.end()

	if target <= 0 {
		target = s.cfg.Export.Limit
	}

	s.feedLog.Info(fmt.Sprintf("discovering up to %d posts (%s)", target, s.filter.String()))

	feed, err := s.newFeed(runCtx, feedURL)
	if err != nil {
		s.feedLog.Error(fmt.Sprintf("failed to open feed: %v", err))
		return nil, err
	}

	// Post and asset requests carry the feed as referer, matching what the
	// site sees from a browser session.
	s.client.SetHeader("Referer", s.client.Abs(feedURL))

	engine := discover.NewEngine(feed, s.filter, s.cfg, s.logger)
	ids, err := engine.Discover(runCtx, target)
	if err != nil {
		return nil, err
	}

	// The feed lists newest first; process oldest first when asked.
	if !s.cfg.Export.NewestFirst {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}

	summary := &Summary{Discovered: len(ids)}
	s.feedLog.Info(fmt.Sprintf("discovered %d posts", len(ids)))

	for _, id := range ids {
		if runCtx.Err() != nil {
			summary.Cancelled = true
			break
		}

		res, err := s.assembler.ExportPost(runCtx, id, false)
		if err != nil {
			// An error that arrived because the run context was cancelled
			// is a stop, not a failure, however the fetch layer dressed it.
			if errs.IsCancelled(err) || runCtx.Err() != nil {
				summary.Cancelled = true
				break
			}
			summary.Failed++
			s.feedLog.Error(fmt.Sprintf("post %s failed: %v", id, err))
			continue
		}

		switch res.Outcome {
		case export.OutcomeSaved:
			summary.Saved++
			s.feedLog.Success(fmt.Sprintf("saved %s (%d assets)", res.FileName, res.Assets))
		case export.OutcomeSkippedDate:
			summary.SkippedDate++
		case export.OutcomeSkippedUnchanged:
			summary.SkippedUnchanged++
		}

		if err := retry.Wait(runCtx, s.cfg.Export.PostDelay); err != nil {
			summary.Cancelled = true
			break
		}
	}

	if summary.Cancelled {
		s.feedLog.Warning(fmt.Sprintf("run stopped: %d saved, %d failed", summary.Saved, summary.Failed))
	} else {
		s.feedLog.Success(fmt.Sprintf(
			"run finished: %d saved, %d unchanged, %d outside range, %d failed",
			summary.Saved, summary.SkippedUnchanged, summary.SkippedDate, summary.Failed))
	}

	s.logger.InfoWithFields("run finished", map[string]interface{}{
		"discovered": summary.Discovered,
		"saved":      summary.Saved,
		"unchanged":  summary.SkippedUnchanged,
		"skipped":    summary.SkippedDate,
		"failed":     summary.Failed,
		"cancelled":  summary.Cancelled,
	})

	return summary, nil
}
