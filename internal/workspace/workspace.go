// Package workspace manages per-entity artifact directories. Each entity
// resolves to a directory under <root>/actors/<key>/ whose files are the
// durable pipeline artifacts. Writes are atomic so readers never observe a
// partially written artifact.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/textutil"
)

// Kind identifies an artifact slot within an entity workspace.
type Kind string

const (
	KindScript         Kind = "script"
	KindScriptMetadata Kind = "script_metadata"
	KindPhonetic       Kind = "phonetic_script"
	KindStoryboard     Kind = "storyboard"
	KindMusicBrief     Kind = "music_brief"
	KindImageMetadata  Kind = "image_metadata"
	KindCostLedger     Kind = "cost_ledger"
)

// artifactSuffixes maps each kind to its file name suffix. The full file
// name is the entity key plus the suffix, matching the on-disk layout the
// rest of the toolchain expects.
var artifactSuffixes = map[Kind]string{
	KindScript:         "_script.txt",
	KindScriptMetadata: "_script_data.json",
	KindPhonetic:       "_PHONETIC_script.txt",
	KindStoryboard:     "_storyboard.json",
	KindMusicBrief:     "_music_plan.json",
	KindImageMetadata:  "_image_data.json",
	KindCostLedger:     "_cost_tracking.json",
}

// Kinds returns every artifact kind in pipeline order.
func Kinds() []Kind {
	return []Kind{
		KindScript,
		KindScriptMetadata,
		KindPhonetic,
		KindStoryboard,
		KindMusicBrief,
		KindImageMetadata,
		KindCostLedger,
	}
}

// Handle identifies one entity's workspace directory.
type Handle struct {
	Key         string
	DisplayName string
	Dir         string
}

// ArtifactPath returns the absolute path for the given artifact kind.
func (h *Handle) ArtifactPath(kind Kind) string {
	suffix, ok := artifactSuffixes[kind]
	if !ok {
		return ""
	}
	return filepath.Join(h.Dir, h.Key+suffix)
}

// ImagesDir returns the directory holding kept image candidates.
func (h *Handle) ImagesDir() string {
	return filepath.Join(h.Dir, "images")
}

// ArchiveDir returns the directory holding archived image candidates.
func (h *Handle) ArchiveDir() string {
	return filepath.Join(h.ImagesDir(), "archive")
}

// LockPath returns the per-entity lock file used to enforce a single
// writer per workspace.
func (h *Handle) LockPath() string {
	return filepath.Join(h.Dir, ".jgl.lock")
}

// Reader reads artifacts from an entity workspace.
type Reader interface {
	Read(h *Handle, kind Kind) ([]byte, error)
	Exists(h *Handle, kind Kind) (bool, error)
}

// Writer writes artifacts into an entity workspace.
type Writer interface {
	Write(h *Handle, kind Kind, data []byte) error
}

// Accessor combines artifact reads and writes. The pipeline controller and
// the steps depend on this interface so they can be tested against the
// in-memory implementation.
type Accessor interface {
	Reader
	Writer
}

// Store is the filesystem-backed workspace implementation.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the actors root if needed and returns a store over it.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "new", "workspace root is empty", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "workspace", "new", "create workspace root", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{root: root, logger: logger.With(logging.String(logging.FieldComponent, "workspace"))}, nil
}

// Root returns the actors root directory.
func (s *Store) Root() string {
	return s.root
}

// Resolve normalizes an entity name into a key and ensures its workspace
// directory and images directory exist. Resolving the same name with
// different casing or spacing yields the same handle.
func (s *Store) Resolve(entityName string) (*Handle, error) {
	key := textutil.EntityKey(entityName)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "workspace", "resolve",
			fmt.Sprintf("entity name %q normalizes to an empty key", entityName), nil)
	}

	dir := filepath.Join(s.root, key)
	created := false
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		created = true
	}
	handle := &Handle{Key: key, DisplayName: textutil.CollapseWhitespace(entityName), Dir: dir}
	for _, path := range []string{dir, handle.ImagesDir()} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, services.Wrap(services.ErrStorage, "workspace", "resolve", "create workspace directory", err)
		}
	}
	if created {
		s.logger.Info("workspace created",
			logging.String(logging.FieldEntity, key),
			logging.String("directory", dir))
	}
	return handle, nil
}

// Read returns the artifact contents, or services.ErrNotFound when the
// artifact has not been written.
func (s *Store) Read(h *Handle, kind Kind) ([]byte, error) {
	path := h.ArtifactPath(kind)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "workspace", "read", fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "workspace", "read",
				fmt.Sprintf("artifact %s for %s", kind, h.Key), nil)
		}
		return nil, services.Wrap(services.ErrStorage, "workspace", "read",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), err)
	}
	return data, nil
}

// Write atomically replaces the artifact. Concurrent readers see either the
// previous contents or the new contents, never a mix.
func (s *Store) Write(h *Handle, kind Kind, data []byte) error {
	path := h.ArtifactPath(kind)
	if path == "" {
		return services.Wrap(services.ErrValidation, "workspace", "write", fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "workspace", "write",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), err)
	}
	return nil
}

// Exists reports whether the artifact file is present.
func (s *Store) Exists(h *Handle, kind Kind) (bool, error) {
	path := h.ArtifactPath(kind)
	if path == "" {
		return false, services.Wrap(services.ErrValidation, "workspace", "exists", fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.ErrStorage, "workspace", "exists",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), err)
	}
	return !info.IsDir(), nil
}
