// Package assets acquires per-shot image candidate pools: quota-checked
// search, ranked and substituted downloads, validation, content-hash
// dedup, and archive-not-delete housekeeping. Shots run in parallel;
// one shot's failure never aborts its siblings.
package assets

import (
	"sort"
	"time"
)

// Status is the lifecycle state of an image candidate.
//
// A candidate flagged for both an upscale and an aspect fix is processed
// upscale first, then aspect fix.
type Status string

const (
	StatusPending        Status = "pending"
	StatusKept           Status = "kept"
	StatusArchived       Status = "archived"
	StatusFlaggedUpscale Status = "flagged_upscale"
	StatusFlaggedAspect  Status = "flagged_aspect"
)

// Candidate is one downloaded image in a shot's pool. Identity within a
// shot is the content hash.
type Candidate struct {
	ShotIndex    int       `json:"shot_index"`
	FileName     string    `json:"file_name"`
	SourceURL    string    `json:"source_url"`
	SourceDomain string    `json:"source_domain"`
	ContentHash  string    `json:"content_hash"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Bytes        int64     `json:"bytes"`
	Status       Status    `json:"status"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Outcome summarizes how a shot's acquisition ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"      // at least the minimum kept
	OutcomePartial Outcome = "partial" // some kept, below the minimum
	OutcomeFailed  Outcome = "failed"  // nothing kept
	OutcomeSkipped Outcome = "skipped" // already met the minimum, resume left it alone
)

// ShotPool is the candidate pool for one shot.
type ShotPool struct {
	ShotIndex   int         `json:"shot_index"`
	Outcome     Outcome     `json:"outcome"`
	SearchCalls int         `json:"search_calls"`
	Candidates  []Candidate `json:"candidates"`
}

// ActiveCount returns the number of candidates still usable (not
// archived).
func (p *ShotPool) ActiveCount() int {
	count := 0
	for _, c := range p.Candidates {
		if c.Status != StatusArchived {
			count++
		}
	}
	return count
}

// Document is the image metadata artifact: every shot's pool for one
// entity. Pools merge across runs; re-entry never clobbers an earlier
// pool.
type Document struct {
	Entity    string     `json:"entity"`
	UpdatedAt time.Time  `json:"updated_at"`
	Shots     []ShotPool `json:"shots"`
}

// Pool returns the pool for a shot index, or nil.
func (d *Document) Pool(shotIndex int) *ShotPool {
	for i := range d.Shots {
		if d.Shots[i].ShotIndex == shotIndex {
			return &d.Shots[i]
		}
	}
	return nil
}

func (d *Document) upsert(pool ShotPool) {
	for i := range d.Shots {
		if d.Shots[i].ShotIndex == pool.ShotIndex {
			d.Shots[i] = pool
			return
		}
	}
	d.Shots = append(d.Shots, pool)
	sort.Slice(d.Shots, func(i, j int) bool { return d.Shots[i].ShotIndex < d.Shots[j].ShotIndex })
}

// Summary reports one acquisition run.
type Summary struct {
	ShotsTotal   int
	ShotsOK      int
	ShotsPartial int
	ShotsFailed  int
	ShotsSkipped int
	ImagesKept   int
	SearchCalls  int
}

// letterFor returns the keep-order suffix: A..Z, then AA, AB, ...
func letterFor(index int) string {
	letters := ""
	for {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
		if index < 0 {
			return letters
		}
	}
}
