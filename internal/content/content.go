// Package content serves the informational texts shown to citizens.
package content

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Keys of the texts the assistant displays.
const (
	KeyNorms     = "exgratia_norms"
	KeyProcedure = "application_procedure"
)

// Fallback is returned whenever a text is missing or unreadable.
const Fallback = "Information not available. Please contact support."

// DefaultFiles maps keys to file names inside the data directory.
var DefaultFiles = map[string]string{
	KeyNorms:     "info_opt1.txt",
	KeyProcedure: "info_opt2.txt",
}

// Store reads a text by key. It never fails; missing texts yield Fallback.
type Store interface {
	ReadText(key string) string
}

// FileStore reads texts from files in a directory. Files ending in .html or
// .htm are reduced to their visible text.
type FileStore struct {
	dir   string
	files map[string]string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store over dir. files overrides DefaultFiles per key.
func NewFileStore(dir string, files map[string]string) *FileStore {
	merged := make(map[string]string, len(DefaultFiles)+len(files))
	for k, v := range DefaultFiles {
		merged[k] = v
	}
	for k, v := range files {
		merged[k] = v
	}
	return &FileStore{dir: dir, files: merged}
}

// ReadText returns the trimmed text for key or Fallback.
func (s *FileStore) ReadText(key string) string {
	name, ok := s.files[key]
	if !ok {
		slog.Warn("FileStore unknown content key", "key", key)
		return Fallback
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, name)
	}

	text, err := readFile(path)
	if err != nil {
		slog.Warn("FileStore content unavailable", "key", key, "path", path, "error", err)
		return Fallback
	}
	if text == "" {
		return Fallback
	}
	return text
}

func readFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return htmlText(f)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
}

// blockSelector lists the elements rendered as separate lines.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre"

func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Nested blocks are emitted by their innermost element only.
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		line := strings.Join(strings.Fields(sel.Text()), " ")
		if line == "" {
			return
		}
		if goquery.NodeName(sel) == "li" {
			line = "• " + line
		}
		lines = append(lines, line)
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}

// MapStore serves texts from memory.
type MapStore map[string]string

// ReadText returns the text for key or Fallback.
func (m MapStore) ReadText(key string) string {
	if text := strings.TrimSpace(m[key]); text != "" {
		return text
	}
	return Fallback
}
