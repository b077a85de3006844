// Package storyboard decomposes an accepted script into a timed shot list
// and a three-style music brief. The model supplies script spans and
// prompts; timing is computed locally so a given shot list always yields
// the same storyboard.
package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
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

// Shot is one storyboard entry. Timings are half-open seconds within
// [0, TotalDurationSeconds]; consecutive shots tile that range exactly.
type Shot struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	ScriptText   string  `json:"script_text"`
	ImagePrompt  string  `json:"image_prompt"`
	VideoPrompt  string  `json:"video_prompt"`
	SearchQuery  string  `json:"search_query"`
}

// Document is the storyboard artifact. SourceHash links it to the script
// it was derived from; a mismatch with the current script marks it stale.
type Document struct {
	Entity               string    `json:"entity"`
	SourceHash           string    `json:"source_hash"`
	Model                string    `json:"model"`
	GeneratedAt          time.Time `json:"generated_at"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	Shots                []Shot    `json:"shots"`
}

// Style is one music recommendation: a single-line pipe-separated Suno
// prompt (Title | BPM | Key | Genre | [Intro] … [Outro]).
type Style struct {
	Prompt string `json:"prompt"`
}

// MusicBrief is the music brief artifact. Order matters: the first style
// is the primary recommendation.
type MusicBrief struct {
	Entity      string    `json:"entity"`
	SourceHash  string    `json:"source_hash"`
	GeneratedAt time.Time `json:"generated_at"`
	Styles      []Style   `json:"styles"`
}

// Result reports one successful planning pass.
type Result struct {
	Storyboard Document
	Music      MusicBrief
}

// CompletionClient is the slice of the llm client the planner needs.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// Recorder appends cost records. Satisfied by *ledger.Ledger.
type Recorder interface {
	Record(rec ledger.Record) error
}

// Planner runs the storyboard step for one entity.
type Planner struct {
	client CompletionClient
	ws     workspace.Accessor
	costs  Recorder
	cfg    config.Storyboard
	logger *slog.Logger
	now    func() time.Time
}

// NewPlanner constructs a planner.
func NewPlanner(client CompletionClient, ws workspace.Accessor, costs Recorder, cfg config.Storyboard, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{
		client: client,
		ws:     ws,
		costs:  costs,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "storyboard")),
		now:    time.Now,
	}
}

// llmShot is the wire shape the model returns for one shot.
type llmShot struct {
	Shot        int    `json:"shot"`
	Script      string `json:"script"`
	ImageSearch string `json:"image_search"`
	ImagePrompt string `json:"image_prompt"`
	VideoPrompt string `json:"video_prompt"`
}

// Plan reads the current script, produces the shot list and music brief,
// and writes both artifacts. Each validation failure earns one fresh
// retry; a second failure surfaces services.ErrValidation with the issues.
func (p *Planner) Plan(ctx context.Context, h *workspace.Handle) (*Result, error) {
	scriptBytes, err := p.ws.Read(h, workspace.KindScript)
	if err != nil {
		return nil, err
	}
	scriptText := string(scriptBytes)
	sourceHash := fileutil.HashBytes(scriptBytes)
	scriptWords := textutil.WordCount(scriptText)

	doc, err := p.planShots(ctx, h, scriptText, sourceHash, scriptWords)
	if err != nil {
		return nil, err
	}
	music, err := p.planMusic(ctx, h, scriptText, sourceHash)
	if err != nil {
		return nil, err
	}

	if err := workspace.WriteJSON(p.ws, h, workspace.KindStoryboard, doc); err != nil {
		return nil, err
	}
	if err := workspace.WriteJSON(p.ws, h, workspace.KindMusicBrief, music); err != nil {
		return nil, err
	}

	p.logger.Info("storyboard written",
		logging.String(logging.FieldEntity, h.Key),
		logging.Int("shot_count", len(doc.Shots)),
		logging.Float64("total_duration_seconds", doc.TotalDurationSeconds))
	return &Result{Storyboard: *doc, Music: *music}, nil
}

func (p *Planner) planShots(ctx context.Context, h *workspace.Handle, scriptText, sourceHash string, scriptWords int) (*Document, error) {
	prompt := ShotPrompt(scriptText, p.cfg.MinShots)
	var lastIssues []string

	for attempt := 1; attempt <= 2; attempt++ {
		completion, err := p.client.Complete(ctx, llm.Request{
			Model:           p.cfg.Model,
			User:            prompt,
			ReasoningEffort: "high",
			JSONResponse:    true,
		})
		if err != nil {
			return nil, err
		}
		p.recordCost(ctx, h, "storyboard_generation", completion, fmt.Sprintf("attempt %d", attempt))

		var wire []llmShot
		if err := llm.DecodeJSON(completion.Content, &wire); err != nil {
			lastIssues = []string{fmt.Sprintf("decode shot array: %v", err)}
			p.logShotRejection(h, attempt, lastIssues)
			continue
		}

		shots := make([]Shot, len(wire))
		for i, ws := range wire {
			shots[i] = Shot{
				Index:       ws.Shot,
				ScriptText:  strings.TrimSpace(ws.Script),
				ImagePrompt: strings.TrimSpace(ws.ImagePrompt),
				VideoPrompt: strings.TrimSpace(ws.VideoPrompt),
				SearchQuery: strings.TrimSpace(ws.ImageSearch),
			}
		}
		total := assignTimings(shots, p.cfg.WordsPerMinute, p.cfg.MinShotSeconds, p.cfg.MaxShotSeconds)

		doc := &Document{
			Entity:               h.Key,
			SourceHash:           sourceHash,
			Model:                completion.Model,
			GeneratedAt:          p.now().UTC(),
			TotalDurationSeconds: total,
			Shots:                shots,
		}
		if issues := p.validateShots(doc, scriptWords); len(issues) > 0 {
			lastIssues = issues
			p.logShotRejection(h, attempt, issues)
			continue
		}
		return doc, nil
	}

	return nil, services.Wrap(services.ErrValidation, "storyboard", "plan",
		fmt.Sprintf("shot list for %s rejected twice: %s", h.Key, strings.Join(lastIssues, "; ")), nil)
}

func (p *Planner) planMusic(ctx context.Context, h *workspace.Handle, scriptText, sourceHash string) (*MusicBrief, error) {
	prompt := MusicPrompt(scriptText)
	var lastIssues []string

	for attempt := 1; attempt <= 2; attempt++ {
		completion, err := p.client.Complete(ctx, llm.Request{
			Model:           p.cfg.Model,
			User:            prompt,
			ReasoningEffort: "high",
			JSONResponse:    true,
		})
		if err != nil {
			return nil, err
		}
		p.recordCost(ctx, h, "music_plan", completion, fmt.Sprintf("attempt %d", attempt))

		var styles []Style
		if err := llm.DecodeJSON(completion.Content, &styles); err != nil {
			lastIssues = []string{fmt.Sprintf("decode style array: %v", err)}
			continue
		}
		for i := range styles {
			styles[i].Prompt = strings.TrimSpace(styles[i].Prompt)
		}
		if issues := validateStyles(styles); len(issues) > 0 {
			lastIssues = issues
			p.logger.Warn("music brief rejected by validation",
				logging.String(logging.FieldEntity, h.Key),
				logging.Int("attempt", attempt),
				logging.Any("issues", issues))
			continue
		}
		return &MusicBrief{
			Entity:      h.Key,
			SourceHash:  sourceHash,
			GeneratedAt: p.now().UTC(),
			Styles:      styles,
		}, nil
	}

	return nil, services.Wrap(services.ErrValidation, "storyboard", "music",
		fmt.Sprintf("music brief for %s rejected twice: %s", h.Key, strings.Join(lastIssues, "; ")), nil)
}

func (p *Planner) logShotRejection(h *workspace.Handle, attempt int, issues []string) {
	p.logger.Warn("shot list rejected by validation",
		logging.String(logging.FieldEntity, h.Key),
		logging.Int("attempt", attempt),
		logging.Any("issues", issues))
}

func (p *Planner) recordCost(ctx context.Context, h *workspace.Handle, operation string, completion *llm.Completion, detail string) {
	if p.costs == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	rec := ledger.Record{
		Timestamp:      p.now().UTC(),
		Operation:      operation,
		Model:          completion.Model,
		InputUnits:     completion.Usage.InputTokens,
		OutputUnits:    completion.Usage.OutputTokens,
		ReasoningUnits: completion.Usage.ReasoningTokens,
		CostEstimate:   llm.EstimateCost(completion.Model, completion.Usage),
		RunID:          runID,
		Detail:         detail,
	}
	if err := p.costs.Record(rec); err != nil {
		p.logger.Warn("cost record failed",
			logging.String(logging.FieldEntity, h.Key),
			logging.Error(err))
	}
}

const timingEpsilon = 1e-6

func (p *Planner) validateShots(doc *Document, scriptWords int) []string {
	var issues []string
	shots := doc.Shots

	if len(shots) < p.cfg.MinShots {
		issues = append(issues, fmt.Sprintf("insufficient shots: %d < %d", len(shots), p.cfg.MinShots))
	}

	coveredWords := 0
	for i, shot := range shots {
		if shot.Index != i+1 {
			issues = append(issues, fmt.Sprintf("shot %d: index %d not contiguous", i+1, shot.Index))
		}
		if shot.ScriptText == "" {
			issues = append(issues, fmt.Sprintf("shot %d: empty script text", shot.Index))
		}
		if shot.ImagePrompt == "" {
			issues = append(issues, fmt.Sprintf("shot %d: empty image prompt", shot.Index))
		}
		if shot.VideoPrompt == "" {
			issues = append(issues, fmt.Sprintf("shot %d: empty video prompt", shot.Index))
		}
		if shot.SearchQuery == "" {
			issues = append(issues, fmt.Sprintf("shot %d: empty search query", shot.Index))
		}
		duration := shot.EndSeconds - shot.StartSeconds
		if duration < p.cfg.MinShotSeconds-timingEpsilon || duration > p.cfg.MaxShotSeconds+timingEpsilon {
			issues = append(issues, fmt.Sprintf("shot %d: duration %.1fs outside [%.1f, %.1f]",
				shot.Index, duration, p.cfg.MinShotSeconds, p.cfg.MaxShotSeconds))
		}
		if shot.StartSeconds >= shot.EndSeconds {
			issues = append(issues, fmt.Sprintf("shot %d: start %.1f >= end %.1f", shot.Index, shot.StartSeconds, shot.EndSeconds))
		}
		if i > 0 && math.Abs(shot.StartSeconds-shots[i-1].EndSeconds) > timingEpsilon {
			issues = append(issues, fmt.Sprintf("shot %d: start %.1f does not meet previous end %.1f",
				shot.Index, shot.StartSeconds, shots[i-1].EndSeconds))
		}
		coveredWords += textutil.WordCount(shot.ScriptText)
	}

	if len(shots) > 0 {
		if math.Abs(shots[0].StartSeconds) > timingEpsilon {
			issues = append(issues, fmt.Sprintf("first shot starts at %.1f, not 0", shots[0].StartSeconds))
		}
		if math.Abs(shots[len(shots)-1].EndSeconds-doc.TotalDurationSeconds) > timingEpsilon {
			issues = append(issues, fmt.Sprintf("last shot ends at %.1f, total is %.1f",
				shots[len(shots)-1].EndSeconds, doc.TotalDurationSeconds))
		}
	}

	if scriptWords > 0 {
		coverage := float64(coveredWords) / float64(scriptWords)
		if coverage < p.cfg.MinScriptCover {
			issues = append(issues, fmt.Sprintf("script coverage %.0f%% below %.0f%%",
				coverage*100, p.cfg.MinScriptCover*100))
		}
	}
	return issues
}

func validateStyles(styles []Style) []string {
	var issues []string
	if len(styles) != 3 {
		issues = append(issues, fmt.Sprintf("expected exactly 3 styles, got %d", len(styles)))
	}
	for i, style := range styles {
		label := fmt.Sprintf("style %d", i+1)
		if style.Prompt == "" {
			issues = append(issues, label+": empty prompt")
			continue
		}
		if strings.ContainsAny(style.Prompt, "\n\r") {
			issues = append(issues, label+": prompt contains newlines")
		}
		if fields := strings.Split(style.Prompt, "|"); len(fields) < 4 {
			issues = append(issues, fmt.Sprintf("%s: header has %d pipe-separated fields, need at least 4", label, len(fields)))
		}
		if !strings.Contains(style.Prompt, "[Intro]") {
			issues = append(issues, label+": missing [Intro] tag")
		}
		if !strings.Contains(style.Prompt, "[Outro]") {
			issues = append(issues, label+": missing [Outro] tag")
		}
	}
	return issues
}
