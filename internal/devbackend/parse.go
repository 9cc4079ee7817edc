package devbackend

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// folderKey is the optional parse column carrying the source folder.
const folderKey = "folder"

// ParseDocuments stores every file and extracts the batch fields of res from
// it. The result is column-major: one array per batch field, the document
// field and the folder, each aligned with files.
//
// Text files are read as "key: value" lines; keys match field names or
// labels case-insensitively. Binary files yield empty values and keep only
// their stored document.
func (s *Store) ParseDocuments(ctx context.Context, res *core.Resource, files []*core.FileHandle) (map[string][]any, error) {
	cfg := res.Batch
	cols := make(map[string][]any, len(cfg.Fields)+2)
	for _, f := range cfg.Fields {
		cols[f.Name] = make([]any, len(files))
	}
	cols[cfg.DocField] = make([]any, len(files))
	cols[folderKey] = make([]any, len(files))

	for i, fh := range files {
		path, err := s.SaveDocument(ctx, res, fh)
		if err != nil {
			return nil, err
		}
		cols[cfg.DocField][i] = path

		pairs := extractPairs(fh.Data)
		for _, f := range cfg.Fields {
			v := pairs[normalizeKey(f.Name)]
			if v == "" {
				v = pairs[normalizeKey(f.Label)]
			}
			cols[f.Name][i] = v
		}
		cols[folderKey][i] = pairs[folderKey]
	}
	s.logger.Debug("parsed documents", "resource", res.Name, "files", len(files))
	return cols, nil
}

// extractPairs reads "key: value" lines from UTF-8 text.
func extractPairs(data []byte) map[string]string {
	pairs := map[string]string{}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return pairs
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		k := normalizeKey(key)
		if k == "" {
			continue
		}
		if _, dup := pairs[k]; !dup {
			pairs[k] = strings.TrimSpace(value)
		}
	}
	return pairs
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
