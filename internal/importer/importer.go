// Package importer loads FTC Event API match and score dumps from local files
// into the match repository.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/scoutstat/internal/adapters/repository"
	"github.com/okian/scoutstat/internal/domain/dedupe"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
)

// Kind is the document type of an import file.
type Kind string

// Document kinds.
const (
	KindMatches Kind = "matches"
	KindScores  Kind = "scores"
)

const defaultSettle = 250 * time.Millisecond

// Summary reports what an import wrote.
type Summary struct {
	Files   int
	Skipped int
	Matches int
	Scores  int
}

// Add accumulates o into s.
func (s *Summary) Add(o Summary) {
	s.Files += o.Files
	s.Skipped += o.Skipped
	s.Matches += o.Matches
	s.Scores += o.Scores
}

// Importer writes decoded documents through a repository.Writer. Each
// distinct file content is applied once per Importer.
type Importer struct {
	w      repository.Writer
	seen   dedupe.Deduper
	logger logger.Logger
	settle time.Duration
}

// New creates an Importer.
func New(w repository.Writer, opts ...Option) (*Importer, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	im := &Importer{
		w:      w,
		logger: logger.Nop(),
		settle: defaultSettle,
	}
	for _, opt := range opts {
		opt(im)
	}
	if im.seen == nil {
		im.seen = dedupe.NewInMemoryDeduper()
	}
	return im, nil
}

// ParseFileName extracts season, event code and kind from a name such as
// 2024-USTXHOU-matches.json.
func ParseFileName(path string) (season int, event string, kind Kind, err error) {
	name := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return 0, "", "", fmt.Errorf("%w: %s", ErrFileName, name)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))

	first := strings.IndexByte(name, '-')
	last := strings.LastIndexByte(name, '-')
	if first <= 0 || last <= first+1 {
		return 0, "", "", fmt.Errorf("%w: %s", ErrFileName, name)
	}
	season, err = strconv.Atoi(name[:first])
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %s", ErrFileName, name)
	}
	event = name[first+1 : last]
	switch k := Kind(strings.ToLower(name[last+1:])); k {
	case KindMatches, KindScores:
		kind = k
	default:
		return 0, "", "", fmt.Errorf("%w: %s", ErrFileName, name)
	}
	return season, event, kind, nil
}

// ImportFile imports one file. Content already imported is skipped.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	season, event, kind, err := ParseFileName(path)
	if err != nil {
		return Summary{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		metrics.RecordImportError()
		return Summary{}, fmt.Errorf("read %s: %w", path, err)
	}

	digest := dedupe.Digest(data)
	if im.seen.SeenAndRecord(ctx, digest) {
		metrics.RecordImportSkipped()
		im.logger.Debug(ctx, "import skipped, content already seen", logger.String("file", path))
		return Summary{Files: 1, Skipped: 1}, nil
	}

	sum, err := im.importData(ctx, data, season, event, kind)
	if err != nil {
		im.seen.Unrecord(ctx, digest)
		metrics.RecordImportError()
		return sum, fmt.Errorf("import %s: %w", path, err)
	}
	sum.Files = 1

	im.logger.Info(ctx, "file imported",
		logger.String("file", path),
		logger.String("event", event),
		logger.Int("season", season),
		logger.Int("matches", sum.Matches),
		logger.Int("scores", sum.Scores))
	return sum, nil
}

func (im *Importer) importData(ctx context.Context, data []byte, season int, event string, kind Kind) (Summary, error) {
	var sum Summary
	switch kind {
	case KindMatches:
		rows, err := decodeMatches(data, season, event)
		if err != nil {
			return sum, err
		}
		for _, row := range rows {
			if err := im.w.SaveMatch(ctx, row); err != nil {
				return sum, err
			}
			sum.Matches++
		}
		metrics.RecordImportedMatches(sum.Matches)
	case KindScores:
		records, err := decodeScores(data, season, event)
		if err != nil {
			return sum, err
		}
		for _, r := range records {
			if err := im.w.SaveScores(ctx, r.ID, r.Scores); err != nil {
				return sum, err
			}
			sum.Scores++
		}
		metrics.RecordImportedScores(sum.Scores)
	}
	return sum, nil
}

// ImportDir imports every .json file in dir, in name order. Files whose
// names do not follow the import convention are ignored.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Summary, error) {
	if info, err := os.Stat(dir); err != nil {
		return Summary{}, err
	} else if !info.IsDir() {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return Summary{}, err
	}
	sort.Strings(paths)

	var total Summary
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if _, _, _, err := ParseFileName(p); err != nil {
			im.logger.Warn(ctx, "ignoring file", logger.String("file", p), logger.Error(err))
			continue
		}
		sum, err := im.ImportFile(ctx, p)
		total.Add(sum)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Watch imports files created or rewritten in dir until ctx is done. A file
// is imported once it has been quiet for the settle delay; failed imports are
// logged and retried on the next change.
func (im *Importer) Watch(ctx context.Context, dir string) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	im.logger.Info(ctx, "watching for import files", logger.String("dir", dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(im.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, _, _, err := ParseFileName(event.Name); err != nil {
				continue
			}
			pending[event.Name] = time.Now()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			im.logger.Warn(ctx, "file watcher error", logger.Error(werr))
		case now := <-ticker.C:
			for path, changed := range pending {
				if now.Sub(changed) < im.settle {
					continue
				}
				delete(pending, path)
				if _, err := im.ImportFile(ctx, path); err != nil {
					im.logger.Error(ctx, "watched import failed", logger.String("file", path), logger.Error(err))
				}
			}
		}
	}
}
