package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"paper_navigator/internal/chunker"
)

var ErrEmptyQuery = errors.New("query text is empty")

// Options configures a persistent index.
type Options struct {
	Path        string
	Collection  string
	Compress    bool
	Concurrency int
	Embed       chromem.EmbeddingFunc
}

// Result is one retrieved chunk.
type Result struct {
	ID         string
	Content    string
	Source     string
	Section    string
	Page       int
	Similarity float32
}

// Index is a single chromem collection persisted on disk.
type Index struct {
	opts Options
	log  *zap.SugaredLogger

	mu sync.Mutex
	db *chromem.DB
}

// Open opens or creates the persistent database at opts.Path.
func Open(opts Options, log *zap.SugaredLogger) (*Index, error) {
	if opts.Collection == "" {
		return nil, errors.New("collection name is required")
	}
	if opts.Embed == nil {
		return nil, errors.New("embedding function is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	idx := &Index{opts: opts, log: log}
	if err := idx.open(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) open() error {
	if err := os.MkdirAll(i.opts.Path, 0755); err != nil {
		return fmt.Errorf("failed to create vector db directory: %w", err)
	}
	i.log.Debugf("Opening vector database at %s", i.opts.Path)
	db, err := chromem.NewPersistentDB(i.opts.Path, i.opts.Compress)
	if err != nil {
		return fmt.Errorf("failed to open vector database: %w", err)
	}
	i.db = db
	return nil
}

// collection returns the collection or nil if it does not exist.
func (i *Index) collection() *chromem.Collection {
	return i.db.GetCollection(i.opts.Collection, i.opts.Embed)
}

// Exists reports whether the collection is present and holds documents.
func (i *Index) Exists() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	coll := i.collection()
	return coll != nil && coll.Count() > 0
}

// Count returns how many chunks the collection holds.
func (i *Index) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	coll := i.collection()
	if coll == nil {
		return 0
	}
	return coll.Count()
}

// Build embeds chunks and adds them to the collection, creating it if needed.
func (i *Index) Build(ctx context.Context, chunks []chunker.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	coll, err := i.db.GetOrCreateCollection(i.opts.Collection, map[string]string{"kind": "documents"}, i.opts.Embed)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		md := make(map[string]string, len(ch.Metadata)+2)
		for k, v := range ch.Metadata {
			md[k] = v
		}
		md["source"] = ch.Source
		md["section"] = ch.Section
		docs = append(docs, chromem.Document{
			ID:       ch.ID,
			Content:  ch.Text,
			Metadata: md,
		})
	}

	i.log.Infof("🧮 Embedding %d chunks (concurrency %d)", len(docs), i.opts.Concurrency)
	if err := coll.AddDocuments(ctx, docs, i.opts.Concurrency); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to topK chunks ordered by cosine similarity. topK is
// clamped to the collection size.
func (i *Index) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}

	i.mu.Lock()
	coll := i.collection()
	i.mu.Unlock()

	if coll == nil {
		return nil, nil
	}
	n := coll.Count()
	if n == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	res, err := coll.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	out := make([]Result, 0, len(res))
	for _, r := range res {
		page, _ := strconv.Atoi(r.Metadata["page"])
		out = append(out, Result{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Metadata["source"],
			Section:    r.Metadata["section"],
			Page:       page,
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (i *Index) DeleteCollection() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.collection() == nil {
		i.log.Debugf("Collection %s does not exist, nothing to delete", i.opts.Collection)
		return nil
	}
	if err := i.db.DeleteCollection(i.opts.Collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	i.log.Infof("🗑️  Deleted collection %s", i.opts.Collection)
	return nil
}

// Reset removes every collection and the persisted files, then reopens an
// empty database at the same path.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.db.Reset(); err != nil {
		return fmt.Errorf("failed to reset vector database: %w", err)
	}
	if err := os.RemoveAll(i.opts.Path); err != nil {
		return fmt.Errorf("failed to remove vector database: %w", err)
	}
	i.log.Infof("Vector database has been reset")
	return i.open()
}

// Export writes a snapshot of the collection to path, gzip-compressed when
// path ends in .gz.
func (i *Index) Export(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.collection() == nil {
		return fmt.Errorf("collection %s does not exist", i.opts.Collection)
	}
	if err := i.db.ExportToFile(path, strings.HasSuffix(path, ".gz"), "", i.opts.Collection); err != nil {
		return fmt.Errorf("failed to export collection: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in a snapshot.
func (i *Index) Import(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot not found: %w", err)
	}
	if err := i.db.ImportFromFile(path, "", i.opts.Collection); err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	if i.collection() == nil {
		return fmt.Errorf("snapshot does not contain collection %s", i.opts.Collection)
	}
	return nil
}
