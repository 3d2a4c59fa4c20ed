package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// documentExts are the plain text formats read from disk as-is.
var documentExts = map[string]bool{".txt": true, ".md": true, ".markdown": true}

func isDocumentFile(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}

// documentIDForPath derives a stable id from the file name so re-ingesting a file
// replaces the previous version.
func documentIDForPath(prefix, path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == ':' || r == '-':
			return r
		default:
			return '-'
		}
	}, base)
	return prefix + id
}

func readInput(path, prefix string, typ document.Type) (ingest.Input, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return ingest.Input{}, fmt.Errorf("read %s: %w", path, err)
	}
	base := filepath.Base(path)
	return ingest.Input{
		ID:     documentIDForPath(prefix, path),
		Title:  strings.TrimSuffix(base, filepath.Ext(base)),
		Source: path,
		Type:   typ,
		Text:   string(data),
	}, nil
}
