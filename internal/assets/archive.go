package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Archive moves a rejected candidate into the workspace archive directory
// and marks it archived in the image metadata. Candidates are never
// deleted; archiving frees the pool slot while keeping the file
// recoverable. Archiving an already-archived candidate is a no-op.
func Archive(ws workspace.Accessor, h *workspace.Handle, shotIndex int, fileName string) error {
	doc, err := workspace.ReadJSON[Document](ws, h, workspace.KindImageMetadata)
	if err != nil {
		return err
	}
	pool := doc.Pool(shotIndex)
	if pool == nil {
		return services.Wrap(services.ErrNotFound, "assets", "archive",
			fmt.Sprintf("shot %d has no candidate pool", shotIndex), nil)
	}

	var candidate *Candidate
	for i := range pool.Candidates {
		if pool.Candidates[i].FileName == fileName {
			candidate = &pool.Candidates[i]
			break
		}
	}
	if candidate == nil {
		return services.Wrap(services.ErrNotFound, "assets", "archive",
			fmt.Sprintf("candidate %s not in shot %d pool", fileName, shotIndex), nil)
	}
	if candidate.Status == StatusArchived {
		return nil
	}

	if err := os.MkdirAll(h.ArchiveDir(), 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "archive", "create archive directory", err)
	}
	src := filepath.Join(h.ImagesDir(), fileName)
	dst := filepath.Join(h.ArchiveDir(), fileName)
	if err := fileutil.MoveFileVerified(src, dst); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "archive",
			fmt.Sprintf("move %s to archive", fileName), err)
	}

	candidate.Status = StatusArchived
	doc.UpdatedAt = time.Now().UTC()
	return workspace.WriteJSON(ws, h, workspace.KindImageMetadata, doc)
}

// Flag marks a non-archived candidate for post-processing. Only the
// flag statuses are accepted; archiving is its own operation because it
// also moves the file.
func Flag(ws workspace.Accessor, h *workspace.Handle, shotIndex int, fileName string, status Status) error {
	if status != StatusFlaggedUpscale && status != StatusFlaggedAspect {
		return services.Wrap(services.ErrValidation, "assets", "flag",
			fmt.Sprintf("status %q is not a flag status", status), nil)
	}
	doc, err := workspace.ReadJSON[Document](ws, h, workspace.KindImageMetadata)
	if err != nil {
		return err
	}
	pool := doc.Pool(shotIndex)
	if pool == nil {
		return services.Wrap(services.ErrNotFound, "assets", "flag",
			fmt.Sprintf("shot %d has no candidate pool", shotIndex), nil)
	}
	for i := range pool.Candidates {
		if pool.Candidates[i].FileName != fileName {
			continue
		}
		if pool.Candidates[i].Status == StatusArchived {
			return services.Wrap(services.ErrValidation, "assets", "flag",
				fmt.Sprintf("candidate %s is archived", fileName), nil)
		}
		pool.Candidates[i].Status = status
		doc.UpdatedAt = time.Now().UTC()
		return workspace.WriteJSON(ws, h, workspace.KindImageMetadata, doc)
	}
	return services.Wrap(services.ErrNotFound, "assets", "flag",
		fmt.Sprintf("candidate %s not in shot %d pool", fileName, shotIndex), nil)
}

// minFreeBytes is the free-space floor below which acquisition refuses to
// start; a full disk mid-download corrupts nothing but wastes quota.
const minFreeBytes = 512 * 1024 * 1024

// CheckFreeSpace verifies the filesystem holding dir has room for a run of
// image downloads.
func CheckFreeSpace(dir string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "prepare",
			fmt.Sprintf("statfs %s", dir), err)
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return services.Wrap(services.ErrStorage, "assets", "prepare",
			fmt.Sprintf("only %d MB free under %s, need %d MB",
				free/(1024*1024), dir, minFreeBytes/(1024*1024)), nil)
	}
	return nil
}
