package feed

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trustfeed/internal/config"
	"github.com/sells-group/trustfeed/internal/fetcher"
	"github.com/sells-group/trustfeed/internal/resilience"
	"github.com/sells-group/trustfeed/pkg/newsapi"
)

// New builds the Source selected by cfg.Provider: "newsapi", "rss" or "all".
func New(cfg config.FeedConfig, res config.ResilienceConfig) (Source, error) {
	retry := resilience.RetryFromConfig(res)
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	newsAPI := func() Source {
		client := newsapi.NewClient(cfg.APIKey,
			newsapi.WithBaseURL(cfg.BaseURL),
			newsapi.WithRateLimit(cfg.RateLimit),
			newsapi.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
		return NewNewsAPISource(client, newsapi.TopHeadlinesRequest{
			Country:  cfg.Country,
			Category: cfg.Category,
			Query:    cfg.Query,
			PageSize: cfg.PageSize,
		}, retry)
	}
	rss := func() (Source, error) {
		feeds, err := LoadFeedList(cfg.RSSFile)
		if err != nil {
			return nil, err
		}
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:  timeout,
			HostRate: cfg.RateLimit,
			Retry:    retry,
		})
		return NewRSSSource(feeds, f, cfg.MaxItems), nil
	}

	switch cfg.Provider {
	case "newsapi":
		return newsAPI(), nil
	case "rss":
		return rss()
	case "all":
		r, err := rss()
		if err != nil {
			return nil, err
		}
		return NewMultiSource(newsAPI(), r), nil
	default:
		return nil, eris.Errorf("feed: unknown provider %q", cfg.Provider)
	}
}
