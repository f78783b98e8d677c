package loader

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

var (
	ErrNoDocuments       = errors.New("no PDF documents found")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

const keepFile = ".gitkeep"

// Format of a loaded document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Document is one file read from the documents directory.
type Document struct {
	ID      string
	Name    string
	Path    string
	Format  Format
	Content string
	// Pages holds per-page text for PDFs, Pages[0] is page 1.
	Pages   []string
	Size    int64
	ModTime time.Time
}

type Loader struct {
	log *zap.SugaredLogger
}

// New creates a loader that logs skipped files to log.
func New(log *zap.SugaredLogger) *Loader {
	return &Loader{log: log}
}

// FormatOf maps a file name to a supported format.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".txt", ".text":
		return FormatText, true
	}
	return "", false
}

// HasPDF reports whether dir exists and holds at least one PDF file.
func HasPDF(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			return true
		}
	}
	return false
}

// Load reads every supported file in dir. The directory must contain at
// least one PDF, otherwise ErrNoDocuments is returned.
func (l *Loader) Load(dir string) ([]Document, error) {
	if !HasPDF(dir) {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	l.log.Infof("📂 Loading documents from %s", dir)

	var docs []Document
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		format, ok := FormatOf(name)
		if !ok {
			l.log.Debugf("Skipping unsupported file: %s", name)
			continue
		}

		doc, err := l.loadFile(filepath.Join(dir, name), format)
		if err != nil {
			l.log.Warnf("⚠️  Failed to load %s: %v", name, err)
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			l.log.Warnf("⚠️  No extractable text in %s", name)
			continue
		}
		docs = append(docs, doc)
	}

	l.log.Infof("📄 Loaded %d document(s)", len(docs))
	return docs, nil
}

// loadFile reads one file into a Document.
func (l *Loader) loadFile(path string, format Format) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:      documentID(filepath.Base(path)),
		Name:    filepath.Base(path),
		Path:    path,
		Format:  format,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	switch format {
	case FormatPDF:
		pages, err := l.readPDF(path)
		if err != nil {
			return Document{}, err
		}
		doc.Pages = pages
		doc.Content = strings.Join(pages, "\n\n")
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		doc.Content = string(data)
	}
	return doc, nil
}

// readPDF extracts plain text page by page. Pages without text keep an
// empty slot so page numbers stay aligned.
func (l *Loader) readPDF(path string) (pages []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]string, numPages)
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			l.log.Warnf("Failed to extract text from page %d of %s: %v", i, filepath.Base(path), err)
			continue
		}
		pages[i-1] = CleanText(text)
	}

	return pages, nil
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes line endings and collapses runs of blanks.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = spaceRun.ReplaceAllString(s, " ")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// UploadName strips any directory from an uploaded file name and checks
// that the result is a visible file of a supported format.
func UploadName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if _, ok := FormatOf(base); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(base))
	}
	return base, nil
}

// SaveUpload writes r into dir under the base name of name and returns the
// final path.
func SaveUpload(dir, name string, r io.Reader) (string, error) {
	base, err := UploadName(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}

	path := filepath.Join(dir, base)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

// Clear removes every regular file in dir except .gitkeep and returns how
// many were deleted. A missing directory is not an error.
func Clear(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == keepFile {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// List returns the supported files currently in dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := FormatOf(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// documentID is stable for a file name regardless of case.
func documentID(name string) string {
	hash := sha256.Sum256(bytes.ToLower([]byte(name)))
	return fmt.Sprintf("%x", hash[:8])
}
