// Package store is the on-disk run cache shared by the fetcher (writer) and
// the renderer (reader). It is the only coupling between the two pipeline
// stages.
//
// Layout:
//
//	<root>/<parameter>/<reference>/<parameter>_+HHH.grib2
//	<root>/<parameter>/<reference>/run.json
//
// Blobs are append-only: an offset is written once via temp-file + rename
// and never rewritten, so concurrent fetch workers (which always target
// distinct keys) need no locking and a reader never observes a partial
// blob. run.json records the run's offset inventory and completeness.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

const (
	runInfoFile = "run.json"

	// refDirLayout names run directories with the provider's dotted
	// timestamp form, which is also filesystem-safe (no colons).
	refDirLayout = domain.ReferenceTimeFormat
)

// Store is a run-addressed blob store rooted at a local directory.
type Store struct {
	root   string
	logger *slog.Logger
	clock  clockwork.Clock
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger, clock clockwork.Clock) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{root: dir, logger: logger, clock: clock}, nil
}

func (s *Store) runDir(p domain.Parameter, ref time.Time) string {
	return filepath.Join(s.root, string(p), ref.UTC().Format(refDirLayout))
}

func (s *Store) offsetPath(p domain.Parameter, ref time.Time, offset int) string {
	return filepath.Join(s.runDir(p, ref), fmt.Sprintf("%s_+%03d.grib2", p, offset))
}

// HasOffset reports whether the blob for (parameter, reference, offset) is
// committed.
func (s *Store) HasOffset(p domain.Parameter, ref time.Time, offset int) bool {
	info, err := os.Stat(s.offsetPath(p, ref, offset))
	return err == nil && info.Size() > 0
}

// PutOffset commits a blob under its key. Keys are write-once: if the entry
// already exists the call is a no-op, preserving the append-only invariant.
// The write is atomic (temp file + rename) so readers and concurrent
// writers never see partial content.
func (s *Store) PutOffset(p domain.Parameter, ref time.Time, offset int, data []byte) error {
	path := s.offsetPath(p, ref, offset)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

// ReadOffset returns the committed blob for a key.
func (s *Store) ReadOffset(p domain.Parameter, ref time.Time, offset int) ([]byte, error) {
	data, err := os.ReadFile(s.offsetPath(p, ref, offset))
	if err != nil {
		return nil, fmt.Errorf("read offset %s/+%03d: %w", p, offset, err)
	}
	return data, nil
}

// WriteRunInfo records the run's current inventory. Completeness is derived
// here, not asserted by the caller: the run is complete iff every expected
// offset has a committed blob.
func (s *Store) WriteRunInfo(p domain.Parameter, ref time.Time, expected []int) (*domain.ForecastRun, error) {
	run := &domain.ForecastRun{
		Parameter: p,
		Reference: ref.UTC(),
		UpdatedAt: s.clock.Now().UTC(),
	}
	for _, offset := range expected {
		if s.HasOffset(p, ref, offset) {
			run.Offsets = append(run.Offsets, offset)
		}
	}
	run.Complete = len(run.Offsets) == len(expected)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal run info: %w", err)
	}

	dir := s.runDir(p, ref)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	tmp := filepath.Join(dir, runInfoFile+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write run info: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, runInfoFile)); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("commit run info: %w", err)
	}
	return run, nil
}

// RunInfo loads the metadata record for one run.
func (s *Store) RunInfo(p domain.Parameter, ref time.Time) (*domain.ForecastRun, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(p, ref), runInfoFile))
	if err != nil {
		return nil, err
	}
	var run domain.ForecastRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run info for %s/%s: %w", p, ref.Format(refDirLayout), err)
	}
	return &run, nil
}

// Runs lists all stored runs for a parameter, newest first. Directories
// without a readable run.json are skipped.
func (s *Store) Runs(p domain.Parameter) ([]*domain.ForecastRun, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", p, err)
	}

	var runs []*domain.ForecastRun
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ref, err := time.Parse(refDirLayout, e.Name())
		if err != nil {
			continue
		}
		run, err := s.RunInfo(p, ref)
		if err != nil {
			s.logger.Warn("skipping run with unreadable metadata",
				"parameter", p, "reference", e.Name(), "error", err)
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Reference.After(runs[j].Reference) })
	return runs, nil
}

// LatestRun returns the newest complete run for a parameter, falling back
// to the newest partial run when no complete one exists. A nil run with a
// *domain.MissingRunError means the parameter has no usable data at all.
func (s *Store) LatestRun(p domain.Parameter) (*domain.ForecastRun, error) {
	runs, err := s.Runs(p)
	if err != nil {
		return nil, err
	}
	var partial *domain.ForecastRun
	for _, run := range runs {
		if run.Complete {
			return run, nil
		}
		if partial == nil && len(run.Offsets) > 0 {
			partial = run
		}
	}
	if partial != nil {
		return partial, nil
	}
	return nil, &domain.MissingRunError{Parameter: p}
}

// Prune deletes runs whose reference time is older than the retention
// window, measured back from the newest stored run. Best effort: failures
// are logged, never fatal.
func (s *Store) Prune(p domain.Parameter, retention time.Duration) int {
	runs, err := s.Runs(p)
	if err != nil {
		s.logger.Warn("prune: listing runs failed", "parameter", p, "error", err)
		return 0
	}
	if len(runs) == 0 {
		return 0
	}

	cutoff := runs[0].Reference.Add(-retention)
	pruned := 0
	for _, run := range runs {
		if !run.Reference.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(s.runDir(p, run.Reference)); err != nil {
			s.logger.Warn("prune: removing run failed",
				"parameter", p, "reference", run.Reference, "error", err)
			continue
		}
		s.logger.Info("pruned stale run", "parameter", p, "reference", run.Reference)
		pruned++
	}
	return pruned
}
