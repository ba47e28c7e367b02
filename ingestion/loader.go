package ingestion

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/graniteworks/passage/core"
)

// supportedExtensions lists the plain-text formats the loader understands.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Loader reads documents from the filesystem.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a document loader.
func NewLoader() *Loader {
	return &Loader{
		logger: slog.Default().With("component", "loader"),
	}
}

// LoadFile reads a single document. The document ID is derived from the file
// name so re-indexing the same file updates its chunks in place.
func (l *Loader) LoadFile(path string) (*core.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	contents := string(data)

	doc := &core.Document{
		Id:       core.IDFromContent(filename),
		Filename: filename,
		Title:    documentTitle(filename, ext, contents),
		DocType:  strings.TrimPrefix(ext, "."),
		Contents: contents,
		Metadata: map[string]string{
			"file_path": path,
			"file_size": strconv.FormatInt(info.Size(), 10),
		},
	}

	l.logger.Debug("loaded document", "filename", filename, "bytes", info.Size())

	return doc, nil
}

// LoadDirectory reads all supported documents under a directory, recursively.
// Files that fail to load are skipped with a warning rather than failing the
// whole walk.
func (l *Loader) LoadDirectory(dir string) ([]*core.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	var documents []*core.Document

	err = filepath.WalkDir(dir, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		doc, loadErr := l.LoadFile(path)
		if loadErr != nil {
			l.logger.Warn("skipping document", "path", path, "err", loadErr)
			return nil
		}

		documents = append(documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("loaded documents from directory", "dir", dir, "count", len(documents))

	return documents, nil
}

// documentTitle picks a title for a document. Markdown files use their first
// top-level heading when one exists, everything else falls back to the file
// name without its extension.
func documentTitle(filename, ext, contents string) string {
	if ext == ".md" || ext == ".markdown" {
		for _, line := range strings.Split(contents, "\n") {
			line = strings.TrimSpace(line)
			if heading, ok := strings.CutPrefix(line, "# "); ok {
				return strings.TrimSpace(heading)
			}
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
