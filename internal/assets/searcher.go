package assets

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/time/rate"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// resultsPerPage is the page size the search backend serves; start offsets
// advance by this much per call.
const resultsPerPage = 10

// SearchResult is one image hit returned by the search backend.
type SearchResult struct {
	URL    string
	MIME   string
	Width  int
	Height int
	Domain string
}

// Searcher returns one page of image results for a query. start is the
// 1-based result offset (1, 11, 21, ...). Implementations must not consume
// quota; the fetcher reserves budget before every call.
type Searcher interface {
	Search(ctx context.Context, query string, start int) ([]SearchResult, error)
}

// CSESearcher queries Google Custom Search for images, throttled to the
// configured request rate.
type CSESearcher struct {
	service  *customsearch.Service
	engineID string
	limiter  *rate.Limiter
}

// NewCSESearcher builds the production searcher from the search config.
func NewCSESearcher(ctx context.Context, cfg config.Search) (*CSESearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "search",
			"image search credentials are not configured", nil)
	}
	service, err := customsearch.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "assets", "search", "create search service", err)
	}
	qps := cfg.QueriesPerSecond
	if qps <= 0 {
		qps = 1
	}
	return &CSESearcher{
		service:  service,
		engineID: cfg.EngineID,
		limiter:  rate.NewLimiter(rate.Limit(qps), 2),
	}, nil
}

// Search runs one image search page against Custom Search.
func (s *CSESearcher) Search(ctx context.Context, query string, start int) ([]SearchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, "assets", "search", "rate limit wait", err)
	}
	response, err := s.service.Cse.List().
		Cx(s.engineID).
		Q(query).
		SearchType("image").
		Safe("active").
		Num(resultsPerPage).
		Start(int64(start)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "assets", "search",
			fmt.Sprintf("image search %q", query), err)
	}

	results := make([]SearchResult, 0, len(response.Items))
	for _, item := range response.Items {
		result := SearchResult{URL: item.Link, MIME: item.Mime}
		if item.Image != nil {
			result.Width = int(item.Image.Width)
			result.Height = int(item.Image.Height)
		}
		if parsed, err := url.Parse(item.Link); err == nil {
			result.Domain = parsed.Hostname()
		}
		results = append(results, result)
	}
	return results, nil
}
