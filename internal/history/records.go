package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"bimdex/internal/engine"
)

// LoadRecord is one completed load as persisted to the history table.
type LoadRecord struct {
	ID              string    `json:"id"`
	RecordedAt      time.Time `json:"recordedAt"`
	SnapshotPath    string    `json:"snapshotPath"`
	MetadataPath    string    `json:"metadataPath,omitempty"`
	SnapshotHash    string    `json:"snapshotHash,omitempty"`
	MetadataHash    string    `json:"metadataHash,omitempty"`
	NodeCount       int       `json:"nodeCount"`
	RenderableCount int       `json:"renderableCount"`
	TriangleCount   int       `json:"triangleCount"`
	MetadataRecords int       `json:"metadataRecords"`
	Matched         int       `json:"matched"`
	Unmatched       int       `json:"unmatched"`
	Groups          int       `json:"groups"`
	Categories      int       `json:"categories"`
	MatchRate       float64   `json:"matchRate"`
	DurationMs      int64     `json:"durationMs"`
}

// FromLoadResult maps a completed engine load onto a history record.
// Input files are content-hashed so a later replay can tell whether the
// payloads changed since the load was recorded.
func FromLoadResult(result *engine.LoadResult) *LoadRecord {
	rec := &LoadRecord{
		ID:              result.LoadID,
		RecordedAt:      time.Now().UTC(),
		SnapshotPath:    result.SnapshotPath,
		MetadataPath:    result.MetadataPath,
		SnapshotHash:    HashFile(result.SnapshotPath),
		MetadataHash:    HashFile(result.MetadataPath),
		NodeCount:       result.Scene.NodeCount,
		RenderableCount: result.Scene.RenderableCount,
		TriangleCount:   result.Scene.TriangleCount,
		MetadataRecords: result.MetadataRecords,
		MatchRate:       result.MatchRate,
		DurationMs:      result.DurationMs,
	}
	if result.Correlation != nil {
		rec.Matched = result.Correlation.Matched
		rec.Unmatched = result.Correlation.Unmatched
		rec.Groups = result.Correlation.Groups
		rec.Categories = result.Correlation.Categories
	}
	return rec
}

// HashFile returns the hex SHA-256 digest of the file at path, or an
// empty string when the path is empty or unreadable. The hash is
// advisory; a record without one is still valid.
func HashFile(path string) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordLoad persists one load record.
func (s *Store) RecordLoad(rec *LoadRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO load_history (
			id, recorded_at, snapshot_path, metadata_path,
			snapshot_hash, metadata_hash,
			node_count, renderable_count, triangle_count, metadata_records,
			matched, unmatched, groups_built, categories_built,
			match_rate, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, recordedAt.Format(time.RFC3339Nano), rec.SnapshotPath, rec.MetadataPath,
		rec.SnapshotHash, rec.MetadataHash,
		rec.NodeCount, rec.RenderableCount, rec.TriangleCount, rec.MetadataRecords,
		rec.Matched, rec.Unmatched, rec.Groups, rec.Categories,
		rec.MatchRate, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to record load: %w", err)
	}
	return nil
}

const loadRecordColumns = `
	id, recorded_at, snapshot_path, COALESCE(metadata_path, ''),
	COALESCE(snapshot_hash, ''), COALESCE(metadata_hash, ''),
	node_count, renderable_count, triangle_count, metadata_records,
	matched, unmatched, groups_built, categories_built,
	match_rate, duration_ms
`

// List returns the most recent records, newest first. A limit of zero
// or less means no limit.
func (s *Store) List(limit int) ([]*LoadRecord, error) {
	query := "SELECT " + loadRecordColumns + " FROM load_history ORDER BY recorded_at DESC, id"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*LoadRecord
	for rows.Next() {
		rec, err := scanLoadRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the record for one load id, or nil when it is unknown.
func (s *Store) Get(loadID string) (*LoadRecord, error) {
	row := s.conn.QueryRow("SELECT "+loadRecordColumns+" FROM load_history WHERE id = ?", loadID)
	rec, err := scanLoadRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM load_history").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// Prune deletes all but the newest keep records and returns the number
// of records removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.conn.Exec(`
		DELETE FROM load_history WHERE id NOT IN (
			SELECT id FROM load_history ORDER BY recorded_at DESC, id LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return int(removed), nil
}

// Clear removes every record.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec("DELETE FROM load_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoadRecord(row rowScanner) (*LoadRecord, error) {
	var rec LoadRecord
	var recordedAt string
	if err := row.Scan(
		&rec.ID, &recordedAt, &rec.SnapshotPath, &rec.MetadataPath,
		&rec.SnapshotHash, &rec.MetadataHash,
		&rec.NodeCount, &rec.RenderableCount, &rec.TriangleCount, &rec.MetadataRecords,
		&rec.Matched, &rec.Unmatched, &rec.Groups, &rec.Categories,
		&rec.MatchRate, &rec.DurationMs,
	); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
		rec.RecordedAt = ts
	}
	return &rec, nil
}
