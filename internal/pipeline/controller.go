package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/ledger"
	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
	"github.com/GoodnightSam/JGL-Assistant/internal/quota"
	"github.com/GoodnightSam/JGL-Assistant/internal/script"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/stage"
	"github.com/GoodnightSam/JGL-Assistant/internal/storyboard"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Decision is an operator answer about an existing or stale artifact.
type Decision string

const (
	DecisionReuse      Decision = "reuse"
	DecisionRegenerate Decision = "regenerate"
	DecisionAbort      Decision = "abort"
)

// ParseDecision maps a CLI flag value to a Decision.
func ParseDecision(value string) (Decision, error) {
	switch Decision(value) {
	case DecisionReuse, DecisionRegenerate, DecisionAbort:
		return Decision(value), nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "options",
			fmt.Sprintf("unknown decision %q (want reuse, regenerate, or abort)", value), nil)
	}
}

// DecisionFunc answers a reuse/regenerate/abort question for one
// artifact. The controller never regenerates an existing artifact
// without consulting it; interactive prompting lives in the CLI.
type DecisionFunc func(ctx context.Context, h *workspace.Handle, artifact string, snap Snapshot) (Decision, error)

// Until names the last step a run should execute.
type Until string

const (
	UntilScript     Until = "script"
	UntilStoryboard Until = "storyboard"
	UntilAssets     Until = "assets"
	UntilFull       Until = "full"
)

var untilRank = map[Until]int{
	UntilScript:     1,
	UntilStoryboard: 2,
	UntilAssets:     3,
	UntilFull:       3,
}

// ParseUntil maps a CLI flag value to an Until bound.
func ParseUntil(value string) (Until, error) {
	if _, ok := untilRank[Until(value)]; !ok {
		return "", services.Wrap(services.ErrValidation, "pipeline", "options",
			fmt.Sprintf("unknown stop point %q (want script, storyboard, assets, or full)", value), nil)
	}
	return Until(value), nil
}

// Options controls one pipeline run.
type Options struct {
	Until      Until
	OnExisting DecisionFunc // nil defaults to reuse
	OnStale    DecisionFunc // nil defaults to abort
}

// Report summarizes one pipeline run.
type Report struct {
	RunID          string
	Entity         string
	Aborted        bool
	AbortedAt      string // artifact whose decision aborted the run
	QuotaExhausted bool
	AssetSummary   *assets.Summary
	Snapshot       Snapshot
}

// Controller sequences the production steps for one entity at a time. A
// flock on the workspace lock file enforces single-writer semantics per
// entity across processes.
type Controller struct {
	store       *workspace.Store
	client      script.CompletionClient
	searcher    assets.Searcher
	counter     quota.Counter
	scores      quota.DomainScores
	cfg         *config.Config
	logger      *slog.Logger
	base        *slog.Logger // un-tagged logger handed to collaborators
	fetcherOpts []assets.FetcherOption
}

// ControllerOption adjusts controller construction.
type ControllerOption func(*Controller)

// WithFetcherOptions forwards options to the per-run asset fetcher.
func WithFetcherOptions(opts ...assets.FetcherOption) ControllerOption {
	return func(c *Controller) { c.fetcherOpts = opts }
}

// NewController wires a controller over the shared collaborators.
func NewController(store *workspace.Store, client script.CompletionClient, searcher assets.Searcher,
	counter quota.Counter, scores quota.DomainScores, cfg *config.Config, logger *slog.Logger,
	opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		store:    store,
		client:   client,
		searcher: searcher,
		counter:  counter,
		scores:   scores,
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
		base:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status resolves the entity and evaluates its state without locking or
// running any stage.
func (c *Controller) Status(entityName string) (*workspace.Handle, Snapshot, error) {
	h, err := c.store.Resolve(entityName)
	if err != nil {
		return nil, Snapshot{}, err
	}
	snap, err := Evaluate(c.store, h, c.cfg.Assets.MinImagesPerShot)
	return h, snap, err
}

// Run executes the pipeline for one entity up to opts.Until. Existing
// artifacts are reused or regenerated only per the decision functions;
// regenerating an upstream artifact leaves downstream artifacts in place
// and reported stale. A stage failure aborts the remaining steps with
// all previously written artifacts intact.
func (c *Controller) Run(ctx context.Context, entityName string, opts Options) (*Report, error) {
	if opts.Until == "" {
		opts.Until = UntilFull
	}
	if _, ok := untilRank[opts.Until]; !ok {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run",
			fmt.Sprintf("unknown stop point %q", opts.Until), nil)
	}

	h, err := c.store.Resolve(entityName)
	if err != nil {
		return nil, err
	}

	lock := flock.New(h.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "pipeline", "lock", "acquire workspace lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConflict, "pipeline", "lock",
			fmt.Sprintf("another run holds the lock for %s", h.Key), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("release workspace lock", logging.Error(err))
		}
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithEntity(ctx, h.Key)
	logger := c.logger.With(
		logging.String(logging.FieldEntity, h.Key),
		logging.String(logging.FieldRunID, runID))
	logger.Info("run started",
		logging.String("entity_name", h.DisplayName),
		logging.String("until", string(opts.Until)))

	report := &Report{RunID: runID, Entity: h.Key}

	costs, err := ledger.Open(c.store, h, c.base)
	if err != nil {
		return report, err
	}

	gen := script.NewGenerator(c.client, c.store, costs, c.cfg.Script, c.base)
	planner := storyboard.NewPlanner(c.client, c.store, costs, c.cfg.Storyboard, c.base)
	fetcher := assets.NewFetcher(c.searcher, c.counter, c.scores, c.store, c.cfg.Assets, c.base, c.fetcherOpts...)

	snap, err := Evaluate(c.store, h, c.cfg.Assets.MinImagesPerShot)
	if err != nil {
		return report, err
	}
	report.Snapshot = snap

	// Script stage. An existing script is never overwritten without an
	// explicit decision.
	runScript := snap.State == StateNoScript
	if !runScript {
		decision, err := c.decide(ctx, h, opts.OnExisting, DecisionReuse, "script", snap)
		if err != nil {
			return report, err
		}
		switch decision {
		case DecisionRegenerate:
			runScript = true
		case DecisionAbort:
			return c.abort(report, "script", logger)
		}
	}
	if runScript {
		handler := &scriptStage{gen: gen, ping: pingerOf(c.client), model: c.cfg.Script.Model}
		if err := c.runStage(ctx, handler, h, logger); err != nil {
			return c.finish(report, h, logger, err)
		}
	} else {
		refreshPhonetic := false
		switch {
		case snap.State == StateScriptReady:
			// A run that failed between writing the script and deriving the
			// phonetic leaves the variant missing. Producing an absent
			// artifact is not a regeneration, so no decision is asked.
			logger.Info("phonetic variant missing, deriving from existing script")
			refreshPhonetic = true
		case snap.PhoneticStale:
			decision, err := c.decide(ctx, h, opts.OnStale, DecisionAbort, "phonetic_script", snap)
			if err != nil {
				return report, err
			}
			switch decision {
			case DecisionRegenerate:
				refreshPhonetic = true
			case DecisionAbort:
				return c.abort(report, "phonetic_script", logger)
			}
		}
		if refreshPhonetic {
			scriptText, err := c.store.Read(h, workspace.KindScript)
			if err != nil {
				return c.finish(report, h, logger, err)
			}
			if _, err := gen.Phoneticize(ctx, h, string(scriptText), snap.ScriptHash); err != nil {
				return c.finish(report, h, logger, err)
			}
		}
	}
	if untilRank[opts.Until] < untilRank[UntilStoryboard] {
		return c.finish(report, h, logger, nil)
	}

	// Storyboard stage. A fresh storyboard is reused without asking; a
	// stale one (script hash moved underneath it) needs a decision.
	snap, err = Evaluate(c.store, h, c.cfg.Assets.MinImagesPerShot)
	if err != nil {
		return c.finish(report, h, logger, err)
	}
	runBoard := false
	switch {
	case snap.ShotCount == 0:
		runBoard = true
	case snap.StoryboardStale:
		decision, err := c.decide(ctx, h, opts.OnStale, DecisionAbort, "storyboard", snap)
		if err != nil {
			return report, err
		}
		switch decision {
		case DecisionRegenerate:
			runBoard = true
		case DecisionAbort:
			return c.abort(report, "storyboard", logger)
		}
	}
	if runBoard {
		handler := &storyboardStage{planner: planner, ping: pingerOf(c.client), model: c.cfg.Storyboard.Model}
		if err := c.runStage(ctx, handler, h, logger); err != nil {
			return c.finish(report, h, logger, err)
		}
	}
	if untilRank[opts.Until] < untilRank[UntilAssets] {
		return c.finish(report, h, logger, nil)
	}

	// Assets stage. Fetch is naturally resumable: complete shots are
	// skipped, so re-running completion is never a regeneration.
	snap, err = Evaluate(c.store, h, c.cfg.Assets.MinImagesPerShot)
	if err != nil {
		return c.finish(report, h, logger, err)
	}
	if snap.State != StateAssetsReady {
		handler := &assetsStage{fetcher: fetcher}
		err := c.runStage(ctx, handler, h, logger)
		report.AssetSummary = handler.summary
		if err != nil {
			if errors.Is(err, services.ErrQuotaExceeded) {
				report.QuotaExhausted = true
				logger.Warn("assets incomplete, daily search quota exhausted", logging.Error(err))
			} else {
				return c.finish(report, h, logger, err)
			}
		}
	}
	return c.finish(report, h, logger, nil)
}

func (c *Controller) decide(ctx context.Context, h *workspace.Handle, fn DecisionFunc,
	fallback Decision, artifact string, snap Snapshot) (Decision, error) {
	if fn == nil {
		return fallback, nil
	}
	decision, err := fn(ctx, h, artifact, snap)
	if err != nil {
		return "", err
	}
	switch decision {
	case DecisionReuse, DecisionRegenerate, DecisionAbort:
		return decision, nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "decide",
			fmt.Sprintf("decision func returned %q for %s", decision, artifact), nil)
	}
}

// runStage drives one handler through the stage contract with uniform
// start/complete logging.
func (c *Controller) runStage(ctx context.Context, handler stage.Handler, h *workspace.Handle, logger *slog.Logger) error {
	start := time.Now()
	stageLogger := logger.With(logging.String(logging.FieldStep, handler.Name()))
	stageLogger.Info("stage started")
	if err := handler.Prepare(ctx, h); err != nil {
		stageLogger.Error("stage preparation failed", logging.Error(err))
		return err
	}
	if err := handler.Execute(ctx, h); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by cancellation")
			return err
		}
		if !errors.Is(err, services.ErrQuotaExceeded) {
			stageLogger.Error("stage failed, earlier artifacts preserved", logging.Error(err))
		}
		return err
	}
	stageLogger.Info("stage completed", logging.Duration("stage_duration", time.Since(start)))
	return nil
}

func (c *Controller) abort(report *Report, artifact string, logger *slog.Logger) (*Report, error) {
	report.Aborted = true
	report.AbortedAt = artifact
	logger.Info("run aborted by decision", logging.String("artifact", artifact))
	return report, nil
}

// finish re-evaluates the final state so the report reflects what the run
// actually left on disk, then hands back the original stage error if any.
func (c *Controller) finish(report *Report, h *workspace.Handle, logger *slog.Logger, runErr error) (*Report, error) {
	snap, err := Evaluate(c.store, h, c.cfg.Assets.MinImagesPerShot)
	if err == nil {
		report.Snapshot = snap
	}
	if runErr == nil {
		logger.Info("run finished", logging.String("state", string(report.Snapshot.State)))
	}
	return report, runErr
}

func pingerOf(client script.CompletionClient) Pinger {
	if p, ok := client.(Pinger); ok {
		return p
	}
	return nil
}
