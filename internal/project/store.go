package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/models"
)

// Document is the persisted state of one project.
type Document struct {
	Assets     []models.Asset `json:"assets"`
	ImportPath string         `json:"import_path"`
	SavedAt    time.Time      `json:"saved_at"`
}

// Save replaces the stored document with doc in a single transaction.
func (s *Store) Save(ctx context.Context, doc Document) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("project: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return fmt.Errorf("project: clear assets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (position, id, path, title, tags, media_type, metadata, sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("project: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range doc.Assets {
		meta, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("project: encode metadata of %s: %w", a.ID, err)
		}
		var seq sql.NullString
		if a.Sequence != nil {
			b, err := json.Marshal(a.Sequence)
			if err != nil {
				return fmt.Errorf("project: encode sequence of %s: %w", a.ID, err)
			}
			seq = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, a.ID, a.Path, a.Title, a.Tags, string(a.MediaType), string(meta), seq); err != nil {
			return fmt.Errorf("project: insert asset %s: %w", a.ID, err)
		}
	}

	savedAt := doc.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	for key, value := range map[string]string{
		keyImportPath: doc.ImportPath,
		keySavedAt:    savedAt.Format(time.RFC3339Nano),
	} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO state (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("project: save %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Load reads the whole document. Any malformed asset fails the load with
// apperr.ErrInvalidAsset naming its position and id.
func (s *Store) Load(ctx context.Context) (Document, error) {
	var doc Document

	rows, err := s.conn.QueryContext(ctx, `
		SELECT position, id, path, title, tags, media_type, metadata, sequence
		FROM assets ORDER BY position`)
	if err != nil {
		return doc, fmt.Errorf("project: query assets: %w", err)
	}
	defer rows.Close()

	doc.Assets = []models.Asset{}
	for rows.Next() {
		var (
			pos       int
			a         models.Asset
			mediaType string
			meta      string
			seq       sql.NullString
		)
		if err := rows.Scan(&pos, &a.ID, &a.Path, &a.Title, &a.Tags, &mediaType, &meta, &seq); err != nil {
			return doc, fmt.Errorf("project: scan asset: %w", err)
		}
		a.MediaType = models.MediaType(mediaType)
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return doc, invalid(pos, a.ID, err)
		}
		if seq.Valid {
			a.Sequence = &models.Sequence{}
			if err := json.Unmarshal([]byte(seq.String), a.Sequence); err != nil {
				return doc, invalid(pos, a.ID, err)
			}
		}
		if err := a.Validate(); err != nil {
			return doc, invalid(pos, a.ID, err)
		}
		doc.Assets = append(doc.Assets, a)
	}
	if err := rows.Err(); err != nil {
		return doc, fmt.Errorf("project: read assets: %w", err)
	}

	doc.ImportPath, err = s.state(ctx, keyImportPath)
	if err != nil {
		return doc, err
	}
	savedAt, err := s.state(ctx, keySavedAt)
	if err != nil {
		return doc, err
	}
	if savedAt != "" {
		doc.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	}
	return doc, nil
}

func (s *Store) state(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("project: read %s: %w", key, err)
	}
	return value, nil
}

func invalid(pos int, id string, err error) error {
	return fmt.Errorf("project: asset %d (%q): %w: %w", pos, id, apperr.ErrInvalidAsset, err)
}
