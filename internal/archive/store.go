// Package archive persists the set of proxies that have been published.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"proxyherald/internal/proxy"
)

// Store reads and writes the JSON archive of published proxies, keyed by
// canonical link. The file is read once and written once per run.
type Store struct {
	path   string
	logger *zap.Logger
}

// New returns a Store over the archive file at path.
func New(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Load returns the archived records. A missing or unreadable archive is
// treated as empty so the run can proceed, at the cost of possibly
// reposting previously archived entries.
func (s *Store) Load() []proxy.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Archive file not found, starting with an empty archive",
				zap.String("path", s.path))
		} else {
			s.logger.Error("Could not read archive file, treating as empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return nil
	}

	var records []proxy.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("Could not parse archive file, treating as empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}
	s.logger.Info("Loaded archive", zap.Int("count", len(records)))
	return records
}

// Links extracts the set of canonical links from records.
func Links(records []proxy.Record) map[string]struct{} {
	links := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.TGLink != "" {
			links[rec.TGLink] = struct{}{}
		}
	}
	return links
}

// Merge appends posted records to the existing archive content, collapses
// duplicates by canonical link with the newest record winning, and persists
// the result with a write-then-replace so a crash mid-write cannot corrupt
// the previous file. Nothing is written when posted is empty.
func (s *Store) Merge(existing, posted []proxy.Record) error {
	if len(posted) == 0 {
		s.logger.Info("No proxies were posted, archive remains unchanged")
		return nil
	}

	merged := collapse(append(existing, posted...))

	if err := s.write(merged); err != nil {
		return fmt.Errorf("write archive %s: %w", s.path, err)
	}
	s.logger.Info("Archive updated",
		zap.Int("new", len(posted)),
		zap.Int("total", len(merged)),
	)
	return nil
}

// collapse keeps one record per link: the position of the first occurrence,
// the value of the last.
func collapse(records []proxy.Record) []proxy.Record {
	index := make(map[string]int, len(records))
	out := make([]proxy.Record, 0, len(records))
	for _, rec := range records {
		if rec.TGLink == "" {
			continue
		}
		if at, ok := index[rec.TGLink]; ok {
			out[at] = rec
			continue
		}
		index[rec.TGLink] = len(out)
		out = append(out, rec)
	}
	return out
}

func (s *Store) write(records []proxy.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}
