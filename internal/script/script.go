// Package script generates the narration script and its TTS-safe phonetic
// variant. Generation gates only on structure (non-empty HOOK and BIO
// blocks); style constraints are measured and logged, never enforced.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/ledger"
	"github.com/GoodnightSam/JGL-Assistant/internal/llm"
	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/textutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// CompletionClient is the slice of the llm client the generator needs.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// Recorder appends cost records. Satisfied by *ledger.Ledger.
type Recorder interface {
	Record(rec ledger.Record) error
}

// PhoneticInfo records how the phonetic variant was derived. SourceHash is
// the content hash of the script it was derived from; a mismatch with the
// current script marks the variant stale.
type PhoneticInfo struct {
	Model        string    `json:"model"`
	SourceHash   string    `json:"source_hash"`
	GeneratedAt  time.Time `json:"generated_at"`
	TokenUsage   llm.Usage `json:"token_usage"`
	CostEstimate float64   `json:"cost_estimate"`
}

// Metadata is the script metadata artifact.
type Metadata struct {
	Entity       string        `json:"entity"`
	Model        string        `json:"model"`
	WordCount    int           `json:"word_count"`
	GeneratedAt  time.Time     `json:"generated_at"`
	TokenUsage   llm.Usage     `json:"token_usage"`
	CostEstimate float64       `json:"cost_estimate"`
	ContentHash  string        `json:"content_hash"`
	Analysis     Analysis      `json:"analysis"`
	Phonetic     *PhoneticInfo `json:"phonetic,omitempty"`
}

// Result reports one successful generation.
type Result struct {
	ScriptText   string
	PhoneticText string
	Metadata     Metadata
	Attempts     int
}

// Generator runs the text-generation step for one entity.
type Generator struct {
	client CompletionClient
	ws     workspace.Accessor
	costs  Recorder
	cfg    config.Script
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator constructs a generator. costs receives one record per
// billable call, including calls whose output fails validation.
func NewGenerator(client CompletionClient, ws workspace.Accessor, costs Recorder, cfg config.Script, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		client: client,
		ws:     ws,
		costs:  costs,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "script")),
		now:    time.Now,
	}
}

// Generate produces the script and its phonetic variant, writing the
// script, script metadata, and phonetic artifacts. The primary model gets
// the full retry budget; when it exhausts validation retries the fallback
// model (if configured) gets a fresh budget.
func (g *Generator) Generate(ctx context.Context, h *workspace.Handle) (*Result, error) {
	models := []string{g.cfg.Model}
	if g.cfg.FallbackModel != "" {
		models = append(models, g.cfg.FallbackModel)
	}

	prompt := ScriptPrompt(h.DisplayName)
	runID, _ := services.RunIDFromContext(ctx)
	totalAttempts := 0
	var lastErr error

	for _, model := range models {
		for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
			totalAttempts++
			completion, err := g.client.Complete(ctx, llm.Request{
				Model:           model,
				User:            prompt,
				ReasoningEffort: "high",
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				// Transport failure after the client's own retries: switch
				// models rather than burning the validation budget.
				g.logger.Warn("script model call failed",
					logging.String(logging.FieldEntity, h.Key),
					logging.String("model", model),
					logging.Int("attempt", attempt),
					logging.Error(err))
				lastErr = err
				break
			}

			g.recordCost(h, "script_generation", completion, runID,
				fmt.Sprintf("attempt %d", totalAttempts))

			issues := validateScript(completion.Content)
			if len(issues) > 0 {
				g.logger.Warn("script rejected by validation",
					logging.String(logging.FieldEntity, h.Key),
					logging.String("model", model),
					logging.Int("attempt", attempt),
					logging.Any("issues", issues))
				lastErr = services.Wrap(services.ErrValidation, "script", "generate",
					fmt.Sprintf("attempt %d: %v", totalAttempts, issues), nil)
				continue
			}

			return g.accept(ctx, h, completion, totalAttempts, runID)
		}
	}

	if lastErr == nil {
		lastErr = services.Wrap(services.ErrValidation, "script", "generate", "no models configured", nil)
	}
	return nil, services.Wrap(services.ErrValidation, "script", "generate",
		fmt.Sprintf("script for %s failed after %d attempts", h.Key, totalAttempts), lastErr)
}

func (g *Generator) accept(ctx context.Context, h *workspace.Handle, completion *llm.Completion, attempts int, runID string) (*Result, error) {
	text := completion.Content
	hash := fileutil.HashBytes([]byte(text))
	analysis := Analyze(text)

	g.logger.Info("script accepted",
		logging.String(logging.FieldEntity, h.Key),
		logging.String("model", completion.Model),
		logging.Int("attempt", attempts),
		logging.Int("word_count", analysis.WordCount),
		logging.Int("year_stamps", analysis.YearStamps),
		logging.Int("age_mentions", analysis.AgeMentions))

	if err := g.ws.Write(h, workspace.KindScript, []byte(text)); err != nil {
		return nil, err
	}
	meta := Metadata{
		Entity:       h.Key,
		Model:        completion.Model,
		WordCount:    analysis.WordCount,
		GeneratedAt:  g.now().UTC(),
		TokenUsage:   completion.Usage,
		CostEstimate: llm.EstimateCost(completion.Model, completion.Usage),
		ContentHash:  hash,
		Analysis:     analysis,
	}
	if err := workspace.WriteJSON(g.ws, h, workspace.KindScriptMetadata, meta); err != nil {
		return nil, err
	}

	phonetic, err := g.Phoneticize(ctx, h, text, hash)
	if err != nil {
		return nil, err
	}

	// Re-read so the stored metadata includes the phonetic block written
	// by Phoneticize.
	stored, err := workspace.ReadJSON[Metadata](g.ws, h, workspace.KindScriptMetadata)
	if err != nil {
		return nil, err
	}
	return &Result{
		ScriptText:   text,
		PhoneticText: phonetic,
		Metadata:     *stored,
		Attempts:     attempts,
	}, nil
}

// Phoneticize derives the phonetic variant from scriptText and writes the
// phonetic artifact plus the phonetic block of the script metadata. Exposed
// separately so a stale phonetic can be refreshed without regenerating the
// script.
func (g *Generator) Phoneticize(ctx context.Context, h *workspace.Handle, scriptText, scriptHash string) (string, error) {
	prompt := PhoneticPrompt(scriptText)
	runID, _ := services.RunIDFromContext(ctx)

	sourceParagraphs := len(textutil.Paragraphs(scriptText))
	sourceMarkers := textutil.CountOccurrences(scriptText, UncertaintyMarker)

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		completion, err := g.client.Complete(ctx, llm.Request{
			Model: g.cfg.PhoneticModel,
			User:  prompt,
		})
		if err != nil {
			return "", err
		}

		g.recordCost(h, "phonetic_conversion", completion, runID,
			fmt.Sprintf("attempt %d", attempt))

		text := completion.Content
		issues := validatePhonetic(text, sourceParagraphs, sourceMarkers)
		if len(issues) > 0 {
			g.logger.Warn("phonetic variant rejected by validation",
				logging.String(logging.FieldEntity, h.Key),
				logging.Int("attempt", attempt),
				logging.Any("issues", issues))
			lastErr = services.Wrap(services.ErrValidation, "script", "phoneticize",
				fmt.Sprintf("attempt %d: %v", attempt, issues), nil)
			continue
		}

		if err := g.ws.Write(h, workspace.KindPhonetic, []byte(text)); err != nil {
			return "", err
		}
		if err := g.updatePhoneticMetadata(h, completion, scriptHash); err != nil {
			return "", err
		}
		g.logger.Info("phonetic variant accepted",
			logging.String(logging.FieldEntity, h.Key),
			logging.String("model", completion.Model),
			logging.Int("attempt", attempt))
		return text, nil
	}

	return "", services.Wrap(services.ErrValidation, "script", "phoneticize",
		fmt.Sprintf("phonetic variant for %s failed after %d attempts", h.Key, g.cfg.MaxAttempts), lastErr)
}

func (g *Generator) updatePhoneticMetadata(h *workspace.Handle, completion *llm.Completion, scriptHash string) error {
	meta, err := workspace.ReadJSON[Metadata](g.ws, h, workspace.KindScriptMetadata)
	if err != nil {
		return err
	}
	meta.Phonetic = &PhoneticInfo{
		Model:        completion.Model,
		SourceHash:   scriptHash,
		GeneratedAt:  g.now().UTC(),
		TokenUsage:   completion.Usage,
		CostEstimate: llm.EstimateCost(completion.Model, completion.Usage),
	}
	return workspace.WriteJSON(g.ws, h, workspace.KindScriptMetadata, meta)
}

func (g *Generator) recordCost(h *workspace.Handle, operation string, completion *llm.Completion, runID, detail string) {
	if g.costs == nil {
		return
	}
	if !llm.KnownModel(completion.Model) {
		detail = fmt.Sprintf("%s (model %q not in pricing table, cost unknown)", detail, completion.Model)
	}
	rec := ledger.Record{
		Timestamp:      g.now().UTC(),
		Operation:      operation,
		Model:          completion.Model,
		InputUnits:     completion.Usage.InputTokens,
		OutputUnits:    completion.Usage.OutputTokens,
		ReasoningUnits: completion.Usage.ReasoningTokens,
		CostEstimate:   llm.EstimateCost(completion.Model, completion.Usage),
		RunID:          runID,
		Detail:         detail,
	}
	if err := g.costs.Record(rec); err != nil {
		g.logger.Warn("cost record failed",
			logging.String(logging.FieldEntity, h.Key),
			logging.Error(err))
	}
}

func validateScript(text string) []string {
	var issues []string
	sections := SplitSections(text)
	if sections.Hook == "" {
		issues = append(issues, "missing or empty HOOK section")
	}
	if sections.Bio == "" {
		issues = append(issues, "missing or empty BIO section")
	}
	return issues
}

func validatePhonetic(text string, sourceParagraphs, sourceMarkers int) []string {
	var issues []string
	if len(textutil.Paragraphs(text)) != sourceParagraphs {
		issues = append(issues, fmt.Sprintf("paragraph count %d does not match source %d",
			len(textutil.Paragraphs(text)), sourceParagraphs))
	}
	if markers := textutil.CountOccurrences(text, UncertaintyMarker); markers != sourceMarkers {
		issues = append(issues, fmt.Sprintf("uncertainty markers %d do not match source %d",
			markers, sourceMarkers))
	}
	return issues
}
