package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"paper_navigator/internal/chunker"
	"paper_navigator/internal/config"
	"paper_navigator/internal/index"
	"paper_navigator/internal/llm"
	"paper_navigator/internal/loader"
	"paper_navigator/internal/metrics"
)

var (
	ErrNoIndex       = errors.New("no documents indexed yet, upload PDF files to get started")
	ErrEmptyQuestion = errors.New("question is empty")
)

const modelListTimeout = 10 * time.Second

// Generator produces an answer for a prompt, streaming fragments to onToken.
type Generator interface {
	Stream(ctx context.Context, prompt string, onToken func(string) error) (string, error)
}

// App is the retrieval-augmented QA pipeline: load, chunk, index, retrieve,
// generate. It owns the documents directory and the vector collection.
type App struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	idx      *index.Index
	gen      Generator
	loader   *loader.Loader
	chunkers *chunker.Factory
	metrics  *metrics.Recorder

	// mu guards ready and metadata. Rebuilds take it exclusively, queries
	// share it for the whole retrieve+generate round trip.
	mu       sync.RWMutex
	ready    bool
	metadata *Metadata
}

// New wires the pipeline. A nil rec gets a private metrics recorder.
func New(cfg *config.Config, idx *index.Index, gen Generator, rec *metrics.Recorder, log *zap.SugaredLogger) *App {
	if rec == nil {
		rec = metrics.New()
	}
	return &App{
		cfg:    cfg,
		log:    log,
		idx:    idx,
		gen:    gen,
		loader: loader.New(log),
		chunkers: chunker.NewFactory(chunker.Config{
			MaxChunkSize: cfg.ChunkSize,
			Overlap:      cfg.ChunkOverlap,
		}),
		metrics:  rec,
		metadata: newMetadata(),
	}
}

// Init checks the model server, prepares the documents directory and loads
// a previously persisted index if there is one. Building is left to the
// first query.
func (a *App) Init(ctx context.Context) error {
	if !a.cfg.SkipModelCheck {
		client := &http.Client{Timeout: modelListTimeout}
		models := []string{a.cfg.OllamaModel, a.cfg.OllamaEmbedModel}
		if err := llm.EnsureModels(ctx, client, a.cfg.OllamaURL, models, a.log); err != nil {
			return fmt.Errorf("ollama model check failed: %w", err)
		}
	}

	if err := os.MkdirAll(a.cfg.DocumentsPath, 0755); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.loadMetadata(); err != nil {
		a.log.Warnf("⚠️  Ignoring unreadable metadata file: %v", err)
		a.metadata = newMetadata()
	}

	if a.loadIndexLocked() {
		a.log.Infof("Restored collection with %d chunks from %d file(s)", a.idx.Count(), len(a.metadata.Files))
	} else {
		a.log.Infof("No existing index found, it will be built on the first question")
	}
	return nil
}

// Status is a snapshot for the front ends.
type Status struct {
	Ready     bool       `json:"ready"`
	Documents []string   `json:"documents"`
	Chunks    int        `json:"chunks"`
	Indexed   []FileInfo `json:"indexed"`
}

// Status reports the documents on disk and what is indexed.
func (a *App) Status() (Status, error) {
	docs, err := loader.List(a.cfg.DocumentsPath)
	if err != nil {
		return Status{}, fmt.Errorf("failed to list documents: %w", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{
		Ready:     a.ready,
		Documents: docs,
		Chunks:    a.idx.Count(),
		Indexed:   a.metadata.sortedFiles(),
	}
	if st.Documents == nil {
		st.Documents = []string{}
	}
	return st, nil
}
