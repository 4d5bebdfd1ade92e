package project

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ownlingo/phrasebatch/store"
	"github.com/ownlingo/phrasebatch/translator"
)

// Context files looked up in the project directory, in order
var ContextFiles = []string{"context.md", "context.txt"}

// Project is a loaded translation project
type Project struct {
	Dir    string
	Config Config
}

// Load reads the project in dir
func Load(dir string) (*Project, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &Project{Dir: dir, Config: cfg}, nil
}

// SourcePath returns the CSV path, relative paths resolved against the project directory
func (p *Project) SourcePath() string {
	if filepath.IsAbs(p.Config.SourceFile) {
		return p.Config.SourceFile
	}
	return filepath.Join(p.Dir, p.Config.SourceFile)
}

// Table is the parsed source CSV
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name in the header, or -1
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *Table) cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ReadTable parses the project's source CSV
func (p *Project) ReadTable() (*Table, error) {
	f, err := os.Open(p.SourcePath())
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()
	return readTable(f)
}

func readTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse source csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("source csv has no header")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return &Table{Header: header, Rows: records[1:]}, nil
}

// Source holds the phrases of a project and the translations already present
// in the destination column
type Source struct {
	Phrases  []translator.Phrase
	Existing map[string]string
}

// Phrases reads the phrases to translate into lang. Rows with an empty source
// text are skipped; a repeated key keeps its first row.
func (p *Project) Phrases(lang string) (*Source, error) {
	table, err := p.ReadTable()
	if err != nil {
		return nil, err
	}
	return p.phrases(table, lang)
}

func (p *Project) phrases(table *Table, lang string) (*Source, error) {
	keyCol := table.Column(p.Config.KeyColumn)
	if keyCol < 0 {
		return nil, &translator.ConfigError{Err: fmt.Errorf("key column %q not found in %s", p.Config.KeyColumn, p.Config.SourceFile)}
	}
	baseCol := table.Column(p.Config.BaseLanguage)
	if baseCol < 0 {
		return nil, &translator.ConfigError{Err: fmt.Errorf("base language column %q not found in %s", p.Config.BaseLanguage, p.Config.SourceFile)}
	}
	dstCol := table.Column(lang)
	ctxCol := table.Column(p.Config.ContextColumn)

	src := &Source{Existing: make(map[string]string)}
	seen := make(map[string]bool, len(table.Rows))
	for _, row := range table.Rows {
		key := table.cell(row, keyCol)
		text := table.cell(row, baseCol)
		if key == "" || text == "" || seen[key] {
			continue
		}
		seen[key] = true

		src.Phrases = append(src.Phrases, translator.Phrase{
			Key:     key,
			Text:    text,
			Context: table.cell(row, ctxCol),
		})
		if existing := table.cell(row, dstCol); existing != "" {
			src.Existing[key] = existing
		}
	}
	return src, nil
}

// WriteBack fills the empty lang cells of the source CSV from translations,
// adding the column when missing, and replaces the file atomically. It
// returns the number of cells filled.
func (p *Project) WriteBack(lang string, translations map[string]string) (int, error) {
	if len(translations) == 0 {
		return 0, nil
	}

	table, err := p.ReadTable()
	if err != nil {
		return 0, err
	}
	keyCol := table.Column(p.Config.KeyColumn)
	if keyCol < 0 {
		return 0, &translator.ConfigError{Err: fmt.Errorf("key column %q not found", p.Config.KeyColumn)}
	}
	dstCol := table.Column(lang)
	if dstCol < 0 {
		table.Header = append(table.Header, lang)
		dstCol = len(table.Header) - 1
	}

	filled := 0
	for i, row := range table.Rows {
		for len(row) < len(table.Header) {
			row = append(row, "")
		}
		table.Rows[i] = row
		if row[dstCol] != "" {
			continue
		}
		if text, ok := translations[row[keyCol]]; ok && text != "" {
			row[dstCol] = text
			filled++
		}
	}
	if filled == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		return 0, err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return 0, fmt.Errorf("encode csv: %w", err)
	}

	if err := store.WriteFileAtomic(p.SourcePath(), buf.Bytes()); err != nil {
		return 0, err
	}
	return filled, nil
}

// ContextOptions carries context given on the command line
type ContextOptions struct {
	File string
	Text string
}

// Context assembles the global translation context: the project's context
// file, then opts.File, then opts.Text, joined by blank lines. Unreadable
// files are logged and skipped.
func (p *Project) Context(opts ContextOptions, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	var parts []string
	for _, name := range ContextFiles {
		path := filepath.Join(p.Dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warn("failed to read context file", "path", path, "error", err)
			continue
		}
		parts = append(parts, strings.TrimSpace(string(data)))
		break
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			logger.Warn("failed to read context file", "path", opts.File, "error", err)
		} else {
			parts = append(parts, strings.TrimSpace(string(data)))
		}
	}

	if text := strings.TrimSpace(opts.Text); text != "" {
		parts = append(parts, text)
	}

	var nonEmpty []string
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// ProgressPath returns the progress file of lang
func (p *Project) ProgressPath(lang string) string {
	return filepath.Join(p.Dir, lang, "progress.json")
}

// DatabasePath returns the SQLite database shared by all languages
func (p *Project) DatabasePath() string {
	return filepath.Join(p.Dir, "translations.db")
}

// Stores holds the open translation stores of a project
type Stores struct {
	project  *Project
	mu       sync.Mutex
	db       *store.SQLite
	progress map[string]*store.ProgressFile
}

// OpenStores opens the configured store backend
func (p *Project) OpenStores() (*Stores, error) {
	s := &Stores{project: p, progress: make(map[string]*store.ProgressFile)}
	if p.Config.Translate.Store == StoreSQLite {
		db, err := store.OpenSQLite(p.DatabasePath())
		if err != nil {
			return nil, err
		}
		s.db = db
	}
	return s, nil
}

// For returns the store of lang
func (s *Stores) For(lang string) (translator.Store, error) {
	if s.db != nil {
		return s.db.Language(lang), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pf, err := s.progressFile(lang)
	if err != nil {
		return nil, err
	}
	return pf, nil
}

func (s *Stores) progressFile(lang string) (*store.ProgressFile, error) {
	if pf, ok := s.progress[lang]; ok {
		return pf, nil
	}
	pf, err := store.NewProgressFile(s.project.ProgressPath(lang))
	if err != nil {
		return nil, err
	}
	s.progress[lang] = pf
	return pf, nil
}

// Translations returns every translation stored for lang
func (s *Stores) Translations(ctx context.Context, lang string) (map[string]string, error) {
	if s.db != nil {
		return s.db.Translations(ctx, lang)
	}
	s.mu.Lock()
	pf, err := s.progressFile(lang)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return pf.Entries(), nil
}

// Close releases the underlying database, if any
func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
