package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"paper_navigator/internal/loader"
)

// Metadata describes what the persisted index was built from.
type Metadata struct {
	Files    map[string]FileInfo `json:"files"`
	DataPath string              `json:"data_path"`
	BuiltAt  time.Time           `json:"built_at"`
}

type FileInfo struct {
	Name         string    `json:"name"`
	Format       string    `json:"format"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	Chunks       int       `json:"chunks"`
}

func newMetadata() *Metadata {
	return &Metadata{Files: make(map[string]FileInfo)}
}

func (m *Metadata) sortedFiles() []FileInfo {
	files := make([]FileInfo, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// loadMetadata reads the manifest. A missing file leaves the current one.
func (a *App) loadMetadata() error {
	f, err := os.Open(a.cfg.MetadataFile)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	md := newMetadata()
	if err := json.NewDecoder(f).Decode(md); err != nil {
		return err
	}
	if md.Files == nil {
		md.Files = make(map[string]FileInfo)
	}
	a.metadata = md
	return nil
}

// saveMetadata writes the manifest next to the vector database.
func (a *App) saveMetadata() error {
	if dir := filepath.Dir(a.cfg.MetadataFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(a.cfg.MetadataFile)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(a.metadata)
}

// LoadIndex marks the persisted collection as ready if it exists.
func (a *App) LoadIndex() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadIndexLocked()
}

func (a *App) loadIndexLocked() bool {
	if !a.idx.Exists() {
		return false
	}
	a.log.Infof("Loading existing index from storage...")
	a.ready = true
	a.metrics.ChunksIndexed(a.idx.Count())
	return true
}

// BuildIndex loads the documents directory, chunks every document and adds
// the chunks to the collection. It returns false without error when there
// is nothing to index.
func (a *App) BuildIndex(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildIndexLocked(ctx)
}

// buildIndexLocked is BuildIndex for callers holding a.mu.
func (a *App) buildIndexLocked(ctx context.Context) (bool, error) {
	a.log.Infof("🏗️  Building a new index from %s", a.cfg.DocumentsPath)
	start := time.Now()

	docs, err := a.loader.Load(a.cfg.DocumentsPath)
	if errors.Is(err, loader.ErrNoDocuments) {
		a.log.Infof("No PDF documents to index")
		a.metrics.IndexBuild("empty")
		return false, nil
	} else if err != nil {
		a.metrics.IndexBuild("error")
		return false, err
	}

	chunks, perFile, err := a.chunkDocuments(docs)
	if err != nil {
		a.metrics.IndexBuild("error")
		return false, err
	}
	if len(chunks) == 0 {
		a.log.Warnf("⚠️  Documents contained no extractable text")
		a.metrics.IndexBuild("empty")
		return false, nil
	}

	if err := a.idx.Build(ctx, chunks); err != nil {
		a.metrics.IndexBuild("error")
		return false, fmt.Errorf("failed to build index: %w", err)
	}

	absDocs, _ := filepath.Abs(a.cfg.DocumentsPath)
	md := newMetadata()
	md.DataPath = absDocs
	md.BuiltAt = time.Now()
	for _, d := range docs {
		md.Files[d.Name] = FileInfo{
			Name:         d.Name,
			Format:       string(d.Format),
			LastModified: d.ModTime,
			Size:         d.Size,
			Chunks:       perFile[d.Name],
		}
	}
	a.metadata = md
	if err := a.saveMetadata(); err != nil {
		a.log.Warnf("⚠️  Failed to save metadata: %v", err)
	}

	a.ready = true
	a.metrics.IndexBuild("built")
	a.metrics.DocumentsIngested(len(docs))
	a.metrics.ChunksIndexed(a.idx.Count())
	a.log.Infof("✅ Index built and persisted: %d document(s), %d chunks in %s", len(docs), len(chunks), time.Since(start).Round(time.Millisecond))
	return true, nil
}

// EnsureIndex loads the persisted index or builds one from the documents
// directory. ErrNoIndex means there is still nothing to query.
func (a *App) EnsureIndex(ctx context.Context) error {
	a.mu.RLock()
	ready := a.ready
	a.mu.RUnlock()
	if ready {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	if !a.loadIndexLocked() {
		if _, err := a.buildIndexLocked(ctx); err != nil {
			return err
		}
	}
	if !a.ready {
		return ErrNoIndex
	}
	return nil
}

// ResetIndex drops the collection and rebuilds it from the documents
// directory. Used after uploads.
func (a *App) ResetIndex(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resetIndexLocked(ctx)
}

func (a *App) resetIndexLocked(ctx context.Context) (bool, error) {
	a.ready = false
	if err := a.idx.DeleteCollection(); err != nil {
		a.log.Warnf("Could not delete collection (it might not exist): %v", err)
	}
	return a.buildIndexLocked(ctx)
}

// Upload is a file received from a front end.
type Upload struct {
	Name   string
	Reader io.Reader
}

// AddDocuments stores uploads in the documents directory and rebuilds the
// index. It returns how many files were saved. The batch is all or nothing:
// every name is checked before anything is written, and files saved before
// a write failure are removed again.
func (a *App) AddDocuments(ctx context.Context, uploads []Upload) (int, error) {
	if len(uploads) == 0 {
		return 0, errors.New("no files uploaded")
	}
	for _, u := range uploads {
		if _, err := loader.UploadName(u.Name); err != nil {
			return 0, fmt.Errorf("failed to save %s: %w", u.Name, err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	saved := make([]string, 0, len(uploads))
	for _, u := range uploads {
		path, err := loader.SaveUpload(a.cfg.DocumentsPath, u.Name, u.Reader)
		if err != nil {
			for _, p := range saved {
				if rmErr := os.Remove(p); rmErr != nil {
					a.log.Warnf("⚠️  Failed to roll back upload %s: %v", p, rmErr)
				}
			}
			return 0, fmt.Errorf("failed to save %s: %w", u.Name, err)
		}
		saved = append(saved, path)
		a.log.Infof("📥 Saved upload %s", path)
	}

	if _, err := a.resetIndexLocked(ctx); err != nil {
		return len(uploads), err
	}
	return len(uploads), nil
}

// ClearWorkspace deletes the vector database, every uploaded document and
// the metadata file.
func (a *App) ClearWorkspace() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.log.Infof("Clearing workspace...")
	a.ready = false

	if err := a.idx.Reset(); err != nil {
		return err
	}

	removed, err := loader.Clear(a.cfg.DocumentsPath)
	if err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	a.log.Infof("Documents folder cleared (%d file(s))", removed)

	a.metadata = newMetadata()
	if err := os.Remove(a.cfg.MetadataFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove metadata: %w", err)
	}

	a.metrics.ChunksIndexed(0)
	a.log.Infof("Workspace cleared")
	return nil
}

// Export snapshots the collection to path.
func (a *App) Export(path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx.Export(path)
}

// Import restores the collection from a snapshot made by Export.
func (a *App) Import(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.idx.Import(path); err != nil {
		return err
	}
	a.ready = a.idx.Exists()
	a.metrics.ChunksIndexed(a.idx.Count())
	return nil
}
