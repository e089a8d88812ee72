// Package storage writes exported documents to disk with sanitized names
// and atomic replacement.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/logger"
)

var (
	pathSeparators = regexp.MustCompile(`[\\/]+`)
	reservedChars  = regexp.MustCompile(`[<>:"|?*]`)
)

// Manager writes files under an output directory. When that directory
// cannot be created or written, writes degrade to the fallback directory
// instead of failing the run.
type Manager struct {
	outputDir   string
	fallbackDir string
	logger      logger.Logger
}

// NewManager creates a storage manager. Directories are created lazily on
// first write.
func NewManager(outputDir, fallbackDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		outputDir:   outputDir,
		fallbackDir: fallbackDir,
		logger:      log,
	}
}

// OutputDir returns the primary output directory.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SanitizeFilename replaces path separators and reserved characters with
// underscores so any title-derived name is safe on disk.
func SanitizeFilename(name string) string {
	name = pathSeparators.ReplaceAllString(name, "_")
	name = reservedChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "untitled"
	}
	return name
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place so readers never observe a partial file.
func writeAtomic(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	final := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return final, nil
}

// Save writes a named file into the output directory, falling back to the
// fallback directory when the primary write fails. It returns the path the
// file ended up at.
func (m *Manager) Save(name string, data []byte) (string, error) {
	name = SanitizeFilename(name)

	path, err := writeAtomic(m.outputDir, name, data)
	if err == nil {
		return path, nil
	}

	m.logger.WarnWithFields("primary output write failed, using fallback directory", map[string]interface{}{
		"file":     name,
		"output":   m.outputDir,
		"fallback": m.fallbackDir,
		"error":    err.Error(),
	})

	path, ferr := writeAtomic(m.fallbackDir, name, data)
	if ferr != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeFilesystem,
			Message: fmt.Sprintf("failed to write %s: %v (fallback: %v)", name, err, ferr),
		}
	}
	return path, nil
}

// SaveHTML writes an HTML document, appending the .html extension when the
// name does not already carry it.
func (m *Manager) SaveHTML(name, html string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".html") {
		name += ".html"
	}
	return m.Save(name, []byte(html))
}
