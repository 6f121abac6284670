package feed

import (
	"context"
	"os"
	"sync"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trustfeed/internal/fetcher"
	"github.com/sells-group/trustfeed/internal/model"
)

// FeedSpec names one RSS or Atom feed.
type FeedSpec struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type feedList struct {
	Feeds []FeedSpec `yaml:"feeds"`
}

// LoadFeedList reads a YAML file of the form:
//
//	feeds:
//	  - name: Reuters World
//	    url: https://example.com/world.rss
func LoadFeedList(path string) ([]FeedSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: read feed list %s", path)
	}

	var fl feedList
	if err := yaml.Unmarshal(data, &fl); err != nil {
		return nil, eris.Wrapf(err, "feed: parse feed list %s", path)
	}

	for i, f := range fl.Feeds {
		if f.URL == "" {
			return nil, eris.Errorf("feed: feed list entry %d has no url", i)
		}
		if f.Name == "" {
			fl.Feeds[i].Name = f.URL
		}
	}
	if len(fl.Feeds) == 0 {
		return nil, eris.Errorf("feed: feed list %s is empty", path)
	}
	return fl.Feeds, nil
}

type cachedFeed struct {
	etag  string
	items []model.Candidate
}

// RSSSource reads candidates from a fixed list of RSS/Atom feeds, in list
// order. Unchanged feeds (HTTP 304) are served from the previous fetch.
type RSSSource struct {
	feeds    []FeedSpec
	fetcher  fetcher.Fetcher
	maxItems int

	mu    sync.Mutex
	cache map[string]cachedFeed
}

// NewRSSSource creates a source over feeds. maxItems caps items taken from
// each feed; zero means no cap.
func NewRSSSource(feeds []FeedSpec, f fetcher.Fetcher, maxItems int) *RSSSource {
	return &RSSSource{
		feeds:    feeds,
		fetcher:  f,
		maxItems: maxItems,
		cache:    make(map[string]cachedFeed),
	}
}

// Name implements Source.
func (s *RSSSource) Name() string { return "rss" }

// Fetch implements Source. Individual feed failures are logged and skipped;
// the call fails only if every feed fails.
func (s *RSSSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	var out []model.Candidate
	var lastErr error
	failed := 0

	for _, spec := range s.feeds {
		items, err := s.fetchOne(ctx, spec)
		if err != nil {
			failed++
			lastErr = err
			zap.L().Warn("feed: rss feed failed", zap.String("feed", spec.Name), zap.Error(err))
			continue
		}
		out = append(out, items...)
	}

	if failed == len(s.feeds) {
		return nil, eris.Wrapf(model.ErrSourceUnavailable, "rss: all %d feeds failed: %v", failed, lastErr)
	}
	return out, nil
}

func (s *RSSSource) fetchOne(ctx context.Context, spec FeedSpec) ([]model.Candidate, error) {
	s.mu.Lock()
	prev := s.cache[spec.URL]
	s.mu.Unlock()

	body, etag, changed, err := s.fetcher.DownloadIfChanged(ctx, spec.URL, prev.etag)
	if err != nil {
		return nil, err
	}
	if !changed {
		return prev.items, nil
	}
	defer body.Close() //nolint:errcheck

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: parse %s", spec.URL)
	}

	items := make([]model.Candidate, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if s.maxItems > 0 && len(items) >= s.maxItems {
			break
		}
		sourceName := spec.Name
		if parsed.Title != "" {
			sourceName = parsed.Title
		}
		c, ok := newCandidate(it.Title, itemText(it), it.Link, sourceName, it.PublishedParsed)
		if !ok {
			continue
		}
		items = append(items, c)
	}

	if etag != "" {
		s.mu.Lock()
		s.cache[spec.URL] = cachedFeed{etag: etag, items: items}
		s.mu.Unlock()
	}
	return items, nil
}

func itemText(it *gofeed.Item) string {
	if it.Description != "" {
		return it.Description
	}
	return it.Content
}
