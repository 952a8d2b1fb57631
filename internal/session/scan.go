package session

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/a3tai/mcp-form-pilot/internal/document"
)

const (
	scanCacheTTL   = 5 * time.Minute
	scanMaxDepth   = 5
	scanFileLimit  = 100
	scanTimeLimit  = 3 * time.Second
	kindForm       = "form"
	timeListLayout = "2006-01-02 15:04:05"
)

// scanResult is one directory walk
type scanResult struct {
	Files     []FileInfo
	Truncated bool
}

// scanner lists candidate forms and documents with depth, count and time
// limits. Hidden entries and symlinks are skipped.
type scanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
	cache     *expirable.LRU[string, scanResult]
}

func newScanner() *scanner {
	return &scanner{
		maxDepth:  scanMaxDepth,
		fileLimit: scanFileLimit,
		timeLimit: scanTimeLimit,
		cache:     expirable.NewLRU[string, scanResult](16, nil, scanCacheTTL),
	}
}

// Scan walks root, serving a cached result while it is fresh
func (s *scanner) Scan(ctx context.Context, root string) (scanResult, error) {
	if hit, ok := s.cache.Get(root); ok {
		return hit, nil
	}

	var res scanResult
	visited := make(map[string]bool)
	start := time.Now()
	if err := s.walk(ctx, root, 0, visited, &res, start); err != nil {
		return res, err
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	s.cache.Add(root, res)
	return res, nil
}

// Invalidate drops the cached listing of root
func (s *scanner) Invalidate(root string) {
	s.cache.Remove(root)
}

func (s *scanner) walk(ctx context.Context, path string, depth int, visited map[string]bool,
	res *scanResult, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxDepth > 0 && depth >= s.maxDepth {
		return nil
	}
	if len(res.Files) >= s.fileLimit || time.Since(start) > s.timeLimit {
		res.Truncated = true
		return nil
	}

	realPath, err := filepath.EvalSymlinks(path)
	if err != nil || visited[realPath] {
		return nil
	}
	visited[realPath] = true

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		entryPath := filepath.Join(path, name)

		if entry.IsDir() {
			if err := s.walk(ctx, entryPath, depth+1, visited, res, start); err != nil {
				return err
			}
			continue
		}

		kind, ok := fileKind(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		res.Files = append(res.Files, FileInfo{
			Path:         entryPath,
			Name:         name,
			Kind:         kind,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(timeListLayout),
		})
		if len(res.Files) >= s.fileLimit {
			res.Truncated = true
			return nil
		}
	}
	return nil
}

// fileKind classifies a file name. PDFs are listed as forms since any PDF
// may carry AcroForm fields; they are equally valid documents.
func fileKind(name string) (string, bool) {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return kindForm, true
	}
	typ, ok := document.TypeForPath(name)
	if !ok {
		return "", false
	}
	return string(typ), true
}
