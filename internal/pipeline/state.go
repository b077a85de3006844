// Package pipeline derives per-entity progress from the workspace
// artifacts and sequences the production steps under a single-writer
// lock. State is never persisted; it is recomputed from artifact
// presence and recorded source-hash links on every evaluation.
package pipeline

import (
	"errors"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/script"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/storyboard"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// State is the derived pipeline position for one entity.
type State string

const (
	StateNoScript        State = "NO_SCRIPT"
	StateScriptReady     State = "SCRIPT_READY"
	StatePhoneticStale   State = "PHONETIC_STALE"
	StatePhoneticReady   State = "PHONETIC_READY"
	StateStoryboardStale State = "STORYBOARD_STALE"
	StateStoryboardReady State = "STORYBOARD_READY"
	StateAssetsPartial   State = "ASSETS_PARTIAL"
	StateAssetsReady     State = "ASSETS_READY"
)

// AssetStats summarizes candidate pool coverage across the storyboard.
type AssetStats struct {
	ShotsTotal       int
	ShotsWithPools   int
	ShotsAtMinimum   int
	ActiveCandidates int
}

// Snapshot is one evaluation of an entity's workspace. Staleness flags
// are computed for every downstream artifact even when an earlier stage
// already blocks, so status output can report the whole picture.
type Snapshot struct {
	State           State
	ScriptHash      string
	PhoneticStale   bool
	StoryboardStale bool
	ShotCount       int
	Assets          AssetStats
}

// Evaluate derives the entity's pipeline state. It has no side effects.
// A downstream artifact is stale whenever its recorded source hash
// differs from the current script hash; stale artifacts stay in place
// and block forward progress until an explicit decision.
// minImagesPerShot is the configured per-shot floor used to judge pool
// completeness.
func Evaluate(ws workspace.Reader, h *workspace.Handle, minImagesPerShot int) (Snapshot, error) {
	var snap Snapshot

	scriptData, err := ws.Read(h, workspace.KindScript)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			snap.State = StateNoScript
			return snap, nil
		}
		return snap, err
	}
	snap.ScriptHash = fileutil.HashBytes(scriptData)

	hasPhonetic, err := ws.Exists(h, workspace.KindPhonetic)
	if err != nil {
		return snap, err
	}
	if hasPhonetic {
		meta, err := readOptional[script.Metadata](ws, h, workspace.KindScriptMetadata)
		if err != nil {
			return snap, err
		}
		snap.PhoneticStale = meta == nil || meta.Phonetic == nil || meta.Phonetic.SourceHash != snap.ScriptHash
	}

	board, err := readOptional[storyboard.Document](ws, h, workspace.KindStoryboard)
	if err != nil {
		return snap, err
	}
	music, err := readOptional[storyboard.MusicBrief](ws, h, workspace.KindMusicBrief)
	if err != nil {
		return snap, err
	}
	hasBoard := board != nil && music != nil
	if hasBoard {
		snap.ShotCount = len(board.Shots)
		snap.StoryboardStale = board.SourceHash != snap.ScriptHash || music.SourceHash != snap.ScriptHash
	}

	images, err := readOptional[assets.Document](ws, h, workspace.KindImageMetadata)
	if err != nil {
		return snap, err
	}
	if hasBoard {
		snap.Assets.ShotsTotal = snap.ShotCount
		if images != nil {
			for _, shot := range board.Shots {
				pool := images.Pool(shot.Index)
				if pool == nil {
					continue
				}
				snap.Assets.ShotsWithPools++
				active := pool.ActiveCount()
				snap.Assets.ActiveCandidates += active
				if active >= minImagesPerShot {
					snap.Assets.ShotsAtMinimum++
				}
			}
		}
	}
	assetsReady := hasBoard && snap.ShotCount > 0 && snap.Assets.ShotsAtMinimum == snap.ShotCount

	switch {
	case !hasPhonetic:
		snap.State = StateScriptReady
	case snap.PhoneticStale:
		snap.State = StatePhoneticStale
	case !hasBoard:
		snap.State = StatePhoneticReady
	case snap.StoryboardStale:
		snap.State = StateStoryboardStale
	case images == nil:
		snap.State = StateStoryboardReady
	case !assetsReady:
		snap.State = StateAssetsPartial
	default:
		snap.State = StateAssetsReady
	}
	return snap, nil
}

func readOptional[T any](ws workspace.Reader, h *workspace.Handle, kind workspace.Kind) (*T, error) {
	value, err := workspace.ReadJSON[T](ws, h, kind)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}
