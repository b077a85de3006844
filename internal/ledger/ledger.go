// Package ledger keeps the append-only per-entity cost record. Every
// billable collaborator call appends one record, whether or not the output
// survived validation, so the ledger reflects actual spend.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Record is one billable collaborator call.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	Operation      string    `json:"operation"`
	Model          string    `json:"model"`
	InputUnits     int64     `json:"input_units"`
	OutputUnits    int64     `json:"output_units"`
	ReasoningUnits int64     `json:"reasoning_units,omitempty"`
	CostEstimate   float64   `json:"cost_estimate"`
	RunID          string    `json:"run_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

// Document is the cost ledger artifact.
type Document struct {
	Entity    string   `json:"entity"`
	TotalCost float64  `json:"total_cost"`
	Entries   []Record `json:"entries"`
}

// OperationSummary aggregates the records for one operation.
type OperationSummary struct {
	Operation   string  `json:"operation"`
	Count       int     `json:"count"`
	InputUnits  int64   `json:"input_units"`
	OutputUnits int64   `json:"output_units"`
	Cost        float64 `json:"cost"`
}

// Summary is the per-operation breakdown plus the grand total.
type Summary struct {
	Entity     string             `json:"entity"`
	Operations []OperationSummary `json:"operations"`
	Total      float64            `json:"total"`
}

// Ledger is the live handle on one entity's cost document. Safe for
// concurrent Record calls within a process; cross-process exclusion is the
// pipeline lock's job.
type Ledger struct {
	mu     sync.Mutex
	ws     workspace.Accessor
	handle *workspace.Handle
	doc    Document
	logger *slog.Logger
}

// Open loads the entity's ledger, or initializes an empty one when no
// ledger exists. A ledger that fails to decode is preserved on disk under a
// .corrupt-<timestamp> name before a fresh document is started, so spend
// history is never silently dropped.
func Open(ws workspace.Accessor, h *workspace.Handle, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "ledger"))

	ledger := &Ledger{
		ws:     ws,
		handle: h,
		doc:    Document{Entity: h.Key},
		logger: logger,
	}

	doc, err := workspace.ReadJSON[Document](ws, h, workspace.KindCostLedger)
	switch {
	case err == nil:
		if doc.Entity == "" {
			doc.Entity = h.Key
		}
		ledger.doc = *doc
	case errors.Is(err, services.ErrNotFound):
		// First run for this entity.
	case errors.Is(err, services.ErrStorage):
		if renameErr := preserveCorrupt(h); renameErr != nil {
			return nil, services.Wrap(services.ErrStorage, "ledger", "open", "preserve corrupt ledger", renameErr)
		}
		logger.Warn("cost ledger was corrupt, preserved and starting fresh",
			logging.String(logging.FieldEntity, h.Key),
			logging.Error(err))
	default:
		return nil, err
	}

	return ledger, nil
}

func preserveCorrupt(h *workspace.Handle) error {
	path := h.ArtifactPath(workspace.KindCostLedger)
	preserved := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
	err := os.Rename(path, preserved)
	if err != nil && os.IsNotExist(err) {
		// In-memory accessor or already gone. Nothing to preserve.
		return nil
	}
	return err
}

// Record appends one entry and persists the whole document atomically.
func (l *Ledger) Record(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	l.doc.Entries = append(l.doc.Entries, rec)
	l.doc.TotalCost += rec.CostEstimate

	if err := workspace.WriteJSON(l.ws, l.handle, workspace.KindCostLedger, l.doc); err != nil {
		// Keep the in-memory entry; a later Record call retries the save.
		return services.Wrap(services.ErrStorage, "ledger", "record", "persist cost ledger", err)
	}
	return nil
}

// Entries returns a copy of all recorded entries in append order.
func (l *Ledger) Entries() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.doc.Entries))
	copy(out, l.doc.Entries)
	return out
}

// Total returns the running cost total.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.TotalCost
}

// Summarize groups entries by operation, sorted by descending cost.
func (l *Ledger) Summarize() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	byOp := make(map[string]*OperationSummary)
	for _, rec := range l.doc.Entries {
		summary, ok := byOp[rec.Operation]
		if !ok {
			summary = &OperationSummary{Operation: rec.Operation}
			byOp[rec.Operation] = summary
		}
		summary.Count++
		summary.InputUnits += rec.InputUnits
		summary.OutputUnits += rec.OutputUnits
		summary.Cost += rec.CostEstimate
	}

	result := Summary{Entity: l.doc.Entity, Total: l.doc.TotalCost}
	for _, summary := range byOp {
		result.Operations = append(result.Operations, *summary)
	}
	sort.Slice(result.Operations, func(i, j int) bool {
		if result.Operations[i].Cost != result.Operations[j].Cost {
			return result.Operations[i].Cost > result.Operations[j].Cost
		}
		return result.Operations[i].Operation < result.Operations[j].Operation
	})
	return result
}
