package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ownlingo/phrasebatch/translator"
)

// SQLite keeps the translations of every language of a project in one database
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time across concurrently translated languages
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		language   TEXT NOT NULL,
		key        TEXT NOT NULL,
		text       TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (language, key)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init translations schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Language returns the store of one destination language
func (s *SQLite) Language(language string) translator.Store {
	return &sqliteLanguage{db: s.db, language: language}
}

// Translations returns the stored translations of language by key
func (s *SQLite) Translations(ctx context.Context, language string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, text FROM translations WHERE language = ?", language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key, text string
		if err := rows.Scan(&key, &text); err != nil {
			return nil, err
		}
		out[key] = text
	}
	return out, rows.Err()
}

type sqliteLanguage struct {
	db       *sql.DB
	language string
}

func (l *sqliteLanguage) HasTranslation(ctx context.Context, key string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM translations WHERE language = ? AND key = ?",
		l.language, key,
	).Scan(&count)
	return count > 0, err
}

func (l *sqliteLanguage) Save(ctx context.Context, key, text string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO translations (language, key, text) VALUES (?, ?, ?)
		 ON CONFLICT(language, key) DO UPDATE SET text = excluded.text, updated_at = CURRENT_TIMESTAMP`,
		l.language, key, text,
	)
	return err
}
