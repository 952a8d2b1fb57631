package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// Options tunes a Normalizer
type Options struct {
	MaxFileSize int64
	Timeout     time.Duration // per document
	Concurrency int
	CacheSize   int
	Now         func() time.Time
}

const (
	defaultTimeout     = 60 * time.Second
	defaultConcurrency = 4
	defaultCacheSize   = 64
)

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

type cached struct {
	typ     Type
	content string
}

// Normalizer extracts documents. Unchanged files are served from an LRU cache.
type Normalizer struct {
	opts  Options
	cache *lru.Cache[cacheKey, cached]
	log   *logger.Logger

	// swapped in tests
	extractors map[Type]func(string) (string, error)
}

// NewNormalizer creates a Normalizer
func NewNormalizer(opts Options, log *logger.Logger) (*Normalizer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	cache, err := lru.New[cacheKey, cached](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}

	return &Normalizer{
		opts:  opts,
		cache: cache,
		log:   log,
		extractors: map[Type]func(string) (string, error){
			TypePDF:  extractPDF,
			TypeWord: extractDOCX,
			TypeText: extractText,
		},
	}, nil
}

// Load extracts a single document. It fails with UnsupportedFormat for an
// unknown extension and ExtractionFailure for anything else.
func (n *Normalizer) Load(ctx context.Context, path string) (Document, error) {
	typ, ok := TypeForPath(path)
	if !ok {
		return Document{}, ferr.Newf(ferr.KindUnsupportedFormat, path,
			"unsupported file extension %q", filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, ferr.Wrap(ferr.KindExtractionFailure, path, err)
	}
	if info.IsDir() {
		return Document{}, ferr.New(ferr.KindExtractionFailure, path, "path is a directory")
	}
	if n.opts.MaxFileSize > 0 && info.Size() > n.opts.MaxFileSize {
		return Document{}, ferr.Newf(ferr.KindExtractionFailure, path,
			"file too large: %d bytes (max: %d bytes)", info.Size(), n.opts.MaxFileSize)
	}

	key := cacheKey{path: absPath(path), size: info.Size(), modTime: info.ModTime().UnixNano()}
	if hit, ok := n.cache.Get(key); ok {
		n.log.Debug("document cache hit", "path", path)
		return n.newDocument(path, hit.typ, hit.content), nil
	}

	content, err := n.extractWithTimeout(ctx, typ, path)
	if err != nil {
		return Document{}, err
	}
	n.cache.Add(key, cached{typ: typ, content: content})

	return n.newDocument(path, typ, content), nil
}

// LoadAll extracts every path. The result always has len(paths) entries in
// input order; failures become error-typed placeholders. Identifiers are
// unique within the batch.
func (n *Normalizer) LoadAll(ctx context.Context, paths []string) []Document {
	docs := make([]Document, len(paths))

	var g errgroup.Group
	g.SetLimit(n.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := n.Load(ctx, path)
			if err != nil {
				n.log.Warn("document failed to load", "path", path, "error", err)
				doc = n.placeholder(path, err)
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	return Uniquify(docs, nil)
}

// Uniquify suffixes duplicate identifiers with _2, _3, ... in order. IDs in
// taken are treated as already used.
func Uniquify(docs []Document, taken map[string]bool) []Document {
	seen := make(map[string]bool, len(docs)+len(taken))
	for id := range taken {
		seen[id] = true
	}
	for i := range docs {
		base := docs[i].ID
		id := base
		for k := 2; seen[id]; k++ {
			id = base + "_" + strconv.Itoa(k)
		}
		docs[i].ID = id
		seen[id] = true
	}
	return docs
}

func (n *Normalizer) newDocument(path string, typ Type, content string) Document {
	now := n.opts.Now()
	return Document{
		ID:        NewID(path, now),
		Type:      typ,
		Source:    path,
		CreatedAt: now,
		Content:   content,
	}
}

func (n *Normalizer) placeholder(path string, err error) Document {
	return n.newDocument(path, TypeError, err.Error())
}

// extractWithTimeout runs the extractor under the per-document timeout.
// Parsers are not cancellable, so a timed out extraction is abandoned.
func (n *Normalizer) extractWithTimeout(ctx context.Context, typ Type, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		content, err := n.extractors[typ](path)
		done <- result{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ferr.Wrap(ferr.KindExtractionFailure, path, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", ferr.Wrap(ferr.KindExtractionFailure, path, r.err)
		}
		return r.content, nil
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
