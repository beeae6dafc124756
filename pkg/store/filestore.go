package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileStore implements Store over a state directory. All durable writes go
// through commitBytes, which is the single place the atomic-rename contract
// is enforced.
type FileStore struct {
	dir    string
	fixDir string
	retry  RetryPolicy
	logger *slog.Logger
}

// NewFileStore creates a file-backed store rooted at dir. fixDir receives
// diagnostic bundles on unrecoverable failures; a relative fixDir is
// resolved under dir.
func NewFileStore(dir, fixDir string, retry RetryPolicy, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %q: %w", dir, err)
	}
	if !filepath.IsAbs(fixDir) {
		fixDir = filepath.Join(dir, fixDir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:    dir,
		fixDir: fixDir,
		retry:  retry,
		logger: logger.With("component", "store"),
	}, nil
}

// Dir returns the state directory root.
func (s *FileStore) Dir() string { return s.dir }

// Get unmarshals the named artifact into v, returning (false, nil) when the
// artifact does not exist.
func (s *FileStore) Get(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}

// Commit durably replaces the named artifact. The write is staged to a
// temporary file in the same directory, synced, and renamed into place so a
// crash mid-write leaves the prior state intact. Failed writes retry per
// the injected schedule; exhaustion materializes a diagnostic bundle and
// returns a *FatalError.
func (s *FileStore) Commit(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := s.withRetry(name, func() error { return s.commitBytes(name, data) }); err != nil {
		return s.fatal(name, v, err)
	}
	return nil
}

// AppendLine appends one JSON line to the named append-only log.
func (s *FileStore) AppendLine(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", name, err)
	}
	data = append(data, '\n')

	if err := s.withRetry(name, func() error { return s.appendBytes(name, data) }); err != nil {
		return s.fatal(name, v, err)
	}
	return nil
}

// WriteMarker replaces any prior marker of m's kind and rewrites both the
// JSON document and its human-readable rendering. Re-running with the same
// kind leaves exactly one live instance.
func (s *FileStore) WriteMarker(m Marker) error {
	markers, err := s.Markers()
	if err != nil {
		return err
	}
	markers[m.Kind] = m

	if err := s.Commit(MarkerDoc, markers); err != nil {
		return err
	}
	// The rendering is derived state: a failure here is logged, not fatal,
	// since MarkerDoc already carries the authoritative record.
	if err := s.withRetry(MarkerRendering, func() error {
		return s.commitBytes(MarkerRendering, renderMarkers(markers))
	}); err != nil {
		s.logger.Warn("failed to render audit markers", "error", err)
	}
	return nil
}

// Markers returns all live audit markers.
func (s *FileStore) Markers() (MarkerSet, error) {
	markers := make(MarkerSet)
	if _, err := s.Get(MarkerDoc, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// commitBytes is the single enforcement point for the atomic-replace
// contract.
func (s *FileStore) commitBytes(name string, data []byte) error {
	target := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write staged %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync staged %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close staged %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod staged %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) appendBytes(name string, data []byte) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	return f.Close()
}

func (s *FileStore) withRetry(name string, fn func() error) error {
	attempt := 0
	return s.retry.Do(func() error {
		attempt++
		err := fn()
		if err != nil && attempt < s.retry.Attempts() {
			s.logger.Warn("write failed, will retry",
				"artifact", name, "attempt", attempt, "error", err)
		}
		return err
	})
}

// fatal materializes a diagnostic bundle for the unpersisted state and
// returns the FatalError the caller must surface.
func (s *FileStore) fatal(name string, state any, cause error) error {
	bundlePath, bundleErr := s.writeFixBundle(name, state, cause)
	if bundleErr != nil {
		s.logger.Error("failed to materialize diagnostic bundle",
			"artifact", name, "error", bundleErr)
	}
	s.logger.Error("persistence exhausted all retries",
		"artifact", name, "bundle", bundlePath, "error", cause)
	return &FatalError{Artifact: name, BundlePath: bundlePath, Err: cause}
}

// writeFixBundle dumps the in-memory state, the causing error, and a
// timestamp under the fix directory. Writes here are deliberately direct:
// the retry machinery already failed, so best effort is all that is left.
func (s *FileStore) writeFixBundle(name string, state any, cause error) (string, error) {
	now := time.Now().UTC()
	dir := filepath.Join(s.fixDir,
		fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	meta := map[string]any{
		"artifact":  name,
		"error":     cause.Error(),
		"timestamp": now,
		"attempts":  s.retry.Attempts(),
	}
	metaData, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaData, 0o644); err != nil {
		return dir, err
	}

	stateData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		stateData = fmt.Appendf(nil, "unencodable state: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "state.json"), stateData, 0o644); err != nil {
		return dir, err
	}
	return dir, nil
}

// renderMarkers produces the human-readable markdown rendering of the
// marker set, one named block per kind.
func renderMarkers(markers MarkerSet) []byte {
	out := []byte("# Audit Markers\n\nOne live marker per kind; each write replaces the prior instance.\n")
	for _, kind := range markerOrder {
		m, ok := markers[kind]
		if !ok {
			continue
		}
		out = fmt.Appendf(out, "\n## %s\n\n- at: %s\n- detail: %s\n",
			m.Kind, m.Timestamp.UTC().Format(time.RFC3339), m.Detail)
		if m.Actor != "" {
			out = fmt.Appendf(out, "- actor: %s\n", m.Actor)
		}
	}
	return out
}

// markerOrder fixes the rendering order so repeated runs produce identical
// documents.
var markerOrder = []MarkerKind{
	MarkerLocked,
	MarkerUnlocked,
	MarkerManualUnlock,
	MarkerForcedUnlock,
	MarkerOverrideUnlock,
	MarkerOverrideDenied,
	MarkerBrakeEngaged,
	MarkerBrakeCleared,
	MarkerPersistFailed,
}
