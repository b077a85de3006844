package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
	"github.com/GoodnightSam/JGL-Assistant/internal/quota"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/storyboard"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Fetcher acquires candidate image pools for every shot in an entity's
// storyboard. It reserves search quota before each backend call, ranks
// results by domain score, downloads candidates through a bounded worker
// pool, and persists the image metadata artifact after every completed
// shot so an interrupted run resumes where it stopped.
type Fetcher struct {
	searcher Searcher
	counter  quota.Counter
	scores   quota.DomainScores
	ws       workspace.Accessor
	cfg      config.Assets
	logger   *slog.Logger
	download *downloader
	now      func() time.Time
}

// FetcherOption adjusts fetcher construction, mainly for tests.
type FetcherOption func(*Fetcher)

// WithDownloader substitutes the HTTP download layer.
func WithDownloader(d *downloader) FetcherOption {
	return func(f *Fetcher) { f.download = d }
}

// WithFetchClock overrides the timestamp source.
func WithFetchClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher wires an image fetcher over the shared quota counter and
// domain score store.
func NewFetcher(searcher Searcher, counter quota.Counter, scores quota.DomainScores,
	ws workspace.Accessor, cfg config.Assets, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Fetcher{
		searcher: searcher,
		counter:  counter,
		scores:   scores,
		ws:       ws,
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "assets")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.download == nil {
		f.download = newDownloader(cfg)
	}
	return f
}

// Fetch fills every shot's candidate pool for the entity. Shots that
// already hold the configured minimum are skipped; remaining shots run
// concurrently and fail independently. When the daily search budget runs
// out mid-run, the summary reflects what was acquired and the returned
// error wraps services.ErrQuotaExceeded.
func (f *Fetcher) Fetch(ctx context.Context, h *workspace.Handle) (*Summary, error) {
	board, err := workspace.ReadJSON[storyboard.Document](f.ws, h, workspace.KindStoryboard)
	if err != nil {
		return nil, err
	}
	if len(board.Shots) == 0 {
		return nil, services.Wrap(services.ErrValidation, "assets", "fetch",
			fmt.Sprintf("storyboard for %s has no shots", h.Key), nil)
	}

	doc, err := f.loadDocument(h)
	if err != nil {
		return nil, err
	}

	var (
		docMu          sync.Mutex
		quotaExhausted atomic.Bool
		summary        = Summary{ShotsTotal: len(board.Shots)}
		firstQuotaErr  error
	)

	jobs := make(chan storyboard.Shot)
	workers := f.cfg.ShotWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(board.Shots) {
		workers = len(board.Shots)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shot := range jobs {
				if ctx.Err() != nil {
					continue
				}

				docMu.Lock()
				pool := ShotPool{ShotIndex: shot.Index}
				if existing := doc.Pool(shot.Index); existing != nil {
					pool = *existing
				}
				docMu.Unlock()

				if pool.ActiveCount() >= f.cfg.MinImagesPerShot {
					docMu.Lock()
					summary.ShotsSkipped++
					docMu.Unlock()
					continue
				}

				result, shotErr := f.fetchShot(ctx, h, shot, pool, &quotaExhausted)

				docMu.Lock()
				doc.upsert(result)
				summary.SearchCalls += result.SearchCalls - pool.SearchCalls
				switch result.Outcome {
				case OutcomeOK:
					summary.ShotsOK++
				case OutcomePartial:
					summary.ShotsPartial++
				default:
					summary.ShotsFailed++
				}
				summary.ImagesKept += result.ActiveCount() - pool.ActiveCount()
				if shotErr != nil && firstQuotaErr == nil && errors.Is(shotErr, services.ErrQuotaExceeded) {
					firstQuotaErr = shotErr
				}
				if err := f.writeDocument(h, doc); err != nil {
					f.logger.Error("persist image metadata",
						logging.String(logging.FieldEntity, h.Key),
						logging.Error(err))
				}
				docMu.Unlock()
			}
		}()
	}

	for _, shot := range board.Shots {
		jobs <- shot
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return &summary, services.Wrap(services.ErrTransient, "assets", "fetch", "run canceled", err)
	}

	f.logger.Info("image acquisition finished",
		logging.String(logging.FieldEntity, h.Key),
		logging.Int("shots_total", summary.ShotsTotal),
		logging.Int("shots_ok", summary.ShotsOK),
		logging.Int("shots_partial", summary.ShotsPartial),
		logging.Int("shots_failed", summary.ShotsFailed),
		logging.Int("shots_skipped", summary.ShotsSkipped),
		logging.Int("images_kept", summary.ImagesKept),
		logging.Int("search_calls", summary.SearchCalls))

	return &summary, firstQuotaErr
}

// fetchShot drives search pages and downloads for one shot until the pool
// reaches the target, the per-shot search budget runs out, or the daily
// quota is exhausted.
func (f *Fetcher) fetchShot(ctx context.Context, h *workspace.Handle, shot storyboard.Shot,
	pool ShotPool, quotaExhausted *atomic.Bool) (ShotPool, error) {

	logger := f.logger.With(
		logging.String(logging.FieldEntity, h.Key),
		logging.Int(logging.FieldShot, shot.Index))

	seen := make(map[string]struct{}, len(pool.Candidates))
	for _, c := range pool.Candidates {
		seen[c.ContentHash] = struct{}{}
	}

	var quotaErr error
	for pool.ActiveCount() < f.cfg.ImagesPerShot && pool.SearchCalls < f.cfg.MaxSearchCallsPerShot {
		if ctx.Err() != nil || quotaExhausted.Load() {
			break
		}
		if err := f.counter.Reserve(ctx, 1); err != nil {
			if errors.Is(err, services.ErrQuotaExceeded) {
				quotaExhausted.Store(true)
				quotaErr = err
				logger.Warn("daily search quota exhausted", logging.Error(err))
				break
			}
			logger.Error("reserve search quota", logging.Error(err))
			break
		}

		start := pool.SearchCalls*resultsPerPage + 1
		results, err := f.searcher.Search(ctx, shot.SearchQuery, start)
		pool.SearchCalls++
		if err != nil {
			logger.Warn("image search failed", logging.Int("start", start), logging.Error(err))
			break
		}

		ranked := f.rankResults(ctx, results)
		f.downloadCandidates(ctx, h, shot.Index, ranked, &pool, seen)

		if len(results) < resultsPerPage {
			break
		}
	}

	switch {
	case pool.ActiveCount() >= f.cfg.MinImagesPerShot:
		pool.Outcome = OutcomeOK
	case pool.ActiveCount() > 0:
		pool.Outcome = OutcomePartial
	default:
		pool.Outcome = OutcomeFailed
	}
	logger.Info("shot pool updated",
		logging.String("outcome", string(pool.Outcome)),
		logging.Int("candidates", pool.ActiveCount()),
		logging.Int("search_calls", pool.SearchCalls))
	return pool, quotaErr
}

// rankResults orders a result page by descending domain score while keeping
// the backend's relevance order within equal scores.
func (f *Fetcher) rankResults(ctx context.Context, results []SearchResult) []SearchResult {
	type scored struct {
		result SearchResult
		score  int
	}
	ranked := make([]scored, len(results))
	for i, r := range results {
		domain := quota.NormalizeDomain(r.Domain)
		score, err := f.scores.Score(ctx, domain)
		if err != nil {
			score = quota.ScoreFor(domain, 0)
		}
		ranked[i] = scored{result: r, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]SearchResult, len(ranked))
	for i, s := range ranked {
		out[i] = s.result
	}
	return out
}

// downloadCandidates pulls ranked results through the bounded download pool
// until the shot reaches its target. Lower-ranked results substitute for
// failed ones; the content-hash set keeps duplicates out of the pool.
func (f *Fetcher) downloadCandidates(ctx context.Context, h *workspace.Handle, shotIndex int,
	results []SearchResult, pool *ShotPool, seen map[string]struct{}) {

	logger := f.logger.With(
		logging.String(logging.FieldEntity, h.Key),
		logging.Int(logging.FieldShot, shotIndex))

	workers := f.cfg.DownloadWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(results) {
		workers = len(results)
	}

	var mu sync.Mutex
	jobs := make(chan SearchResult)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for result := range jobs {
				mu.Lock()
				full := pool.ActiveCount() >= f.cfg.ImagesPerShot
				mu.Unlock()
				if full || ctx.Err() != nil {
					continue
				}

				domain := quota.NormalizeDomain(result.Domain)
				candidate, data, err := f.download.fetch(ctx, result)
				if err != nil {
					logger.Debug("candidate rejected",
						logging.String("url", result.URL),
						logging.Error(err))
					if err := f.scores.RecordFailure(ctx, domain); err != nil {
						logger.Warn("record domain failure", logging.Error(err))
					}
					continue
				}

				mu.Lock()
				if _, dup := seen[candidate.hash]; dup || pool.ActiveCount() >= f.cfg.ImagesPerShot {
					mu.Unlock()
					continue
				}
				seen[candidate.hash] = struct{}{}
				fileName := fmt.Sprintf("%d%s%s", shotIndex, letterFor(len(pool.Candidates)), candidate.ext)
				pool.Candidates = append(pool.Candidates, Candidate{
					ShotIndex:    shotIndex,
					FileName:     fileName,
					SourceURL:    result.URL,
					SourceDomain: domain,
					ContentHash:  candidate.hash,
					Width:        candidate.width,
					Height:       candidate.height,
					Bytes:        int64(len(data)),
					Status:       StatusPending,
					FetchedAt:    f.now().UTC(),
				})
				mu.Unlock()

				if err := writeImageFile(h, fileName, data); err != nil {
					logger.Error("write image file",
						logging.String("file", fileName),
						logging.Error(err))
					mu.Lock()
					pool.removeByHash(candidate.hash)
					delete(seen, candidate.hash)
					mu.Unlock()
					continue
				}
				logger.Debug("candidate kept",
					logging.String("file", fileName),
					logging.String("domain", domain))
			}
		}()
	}

	for _, result := range results {
		jobs <- result
	}
	close(jobs)
	wg.Wait()
}

func (p *ShotPool) removeByHash(hash string) {
	for i, c := range p.Candidates {
		if c.ContentHash == hash {
			p.Candidates = append(p.Candidates[:i], p.Candidates[i+1:]...)
			return
		}
	}
}

func (f *Fetcher) loadDocument(h *workspace.Handle) (*Document, error) {
	doc, err := workspace.ReadJSON[Document](f.ws, h, workspace.KindImageMetadata)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return &Document{Entity: h.Key}, nil
		}
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) writeDocument(h *workspace.Handle, doc *Document) error {
	doc.UpdatedAt = f.now().UTC()
	return workspace.WriteJSON(f.ws, h, workspace.KindImageMetadata, doc)
}

func writeImageFile(h *workspace.Handle, fileName string, data []byte) error {
	dir := h.ImagesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "download", "create images directory", err)
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "download",
			fmt.Sprintf("write image %s", fileName), err)
	}
	return nil
}
