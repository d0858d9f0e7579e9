package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run operations

// InsertRun records the start of an ngic invocation.
func (s *Store) InsertRun(run *Run) error {
	query := `
		INSERT INTO runs (id, started_at, mode, target_format, quality)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.Mode,
		run.TargetFormat,
		run.Quality,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to insert run %s", run.ID), err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	query := `
		SELECT id, started_at, mode, target_format, quality
		FROM runs
		WHERE id = ?
	`

	var run Run
	var startedAt string

	err := s.db.QueryRow(query, id).Scan(
		&run.ID,
		&startedAt,
		&run.Mode,
		&run.TargetFormat,
		&run.Quality,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %s", id), err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %s: %w", id, err)
	}

	return &run, nil
}

// Conversion operations

// InsertConversion records a conversion and returns its ID.
func (s *Store) InsertConversion(c *Conversion) (int64, error) {
	query := `
		INSERT INTO conversions
		(run_id, input_path, output_path, input_sha256, source_format, target_format,
		 quality, input_bytes, output_bytes, duration_ms, status, error, converted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	convertedAt := c.ConvertedAt
	if convertedAt.IsZero() {
		convertedAt = time.Now()
	}

	result, err := s.db.Exec(query,
		c.RunID,
		c.InputPath,
		c.OutputPath,
		c.InputSHA256,
		c.SourceFormat,
		c.TargetFormat,
		c.Quality,
		c.InputBytes,
		c.OutputBytes,
		c.Duration.Milliseconds(),
		c.Status,
		c.Error,
		convertedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, wrapErr(fmt.Sprintf("failed to insert conversion of %s", c.InputPath), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get conversion ID: %w", err)
	}

	return id, nil
}

const conversionColumns = `
	id, run_id, input_path, output_path, COALESCE(input_sha256, ''), COALESCE(source_format, ''),
	target_format, quality, COALESCE(input_bytes, 0), COALESCE(output_bytes, 0),
	COALESCE(duration_ms, 0), status, COALESCE(error, ''), converted_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*Conversion, error) {
	var c Conversion
	var durationMS int64
	var convertedAt string

	err := row.Scan(
		&c.ID,
		&c.RunID,
		&c.InputPath,
		&c.OutputPath,
		&c.InputSHA256,
		&c.SourceFormat,
		&c.TargetFormat,
		&c.Quality,
		&c.InputBytes,
		&c.OutputBytes,
		&durationMS,
		&c.Status,
		&c.Error,
		&convertedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Duration = time.Duration(durationMS) * time.Millisecond
	c.ConvertedAt, err = time.Parse(time.RFC3339, convertedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse converted_at for conversion %d: %w", c.ID, err)
	}

	return &c, nil
}

// ListConversions returns the most recent conversions, newest first.
// A limit <= 0 returns all of them.
func (s *Store) ListConversions(limit int) ([]*Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions ORDER BY converted_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list conversions", err)
	}
	defer rows.Close()

	var conversions []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion row: %w", err)
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}

	return conversions, nil
}

// ListRunConversions returns the conversions belonging to a run, oldest first.
func (s *Store) ListRunConversions(runID string) ([]*Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE run_id = ? ORDER BY id`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to list conversions for run %s", runID), err)
	}
	defer rows.Close()

	var conversions []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion row: %w", err)
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}

	return conversions, nil
}

// FindConversion returns the most recent successful conversion of content
// with the given hash to targetFormat at quality. Returns nil, nil if there is
// none.
func (s *Store) FindConversion(inputSHA256, targetFormat string, quality int) (*Conversion, error) {
	query := `SELECT ` + conversionColumns + `
		FROM conversions
		WHERE input_sha256 = ? AND target_format = ? AND quality = ? AND status = ?
		ORDER BY converted_at DESC, id DESC
		LIMIT 1`

	c, err := scanConversion(s.db.QueryRow(query, inputSHA256, targetFormat, quality, StatusOK))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to find conversion", err)
	}

	return c, nil
}

// CountConversions returns the total number of recorded conversions.
func (s *Store) CountConversions() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM conversions").Scan(&count)
	if err != nil {
		return 0, wrapErr("failed to count conversions", err)
	}
	return count, nil
}

// FormatStats returns per-target-format totals ordered by format name.
// Byte totals only include successful conversions.
func (s *Store) FormatStats() ([]FormatStats, error) {
	query := `
		SELECT target_format,
		       COUNT(*),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       COALESCE(SUM(CASE WHEN status = ? THEN input_bytes ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN output_bytes ELSE 0 END), 0)
		FROM conversions
		GROUP BY target_format
		ORDER BY target_format
	`

	rows, err := s.db.Query(query, StatusFailed, StatusOK, StatusOK)
	if err != nil {
		return nil, wrapErr("failed to aggregate conversions", err)
	}
	defer rows.Close()

	var stats []FormatStats
	for rows.Next() {
		var fs FormatStats
		if err := rows.Scan(&fs.TargetFormat, &fs.Count, &fs.Failed, &fs.InputBytes, &fs.OutputBytes); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats = append(stats, fs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}

	return stats, nil
}

// PruneBefore deletes conversions recorded before cutoff and returns how
// many were removed. Runs are kept: a long-lived watch run may still be
// recording into one whose conversions were all pruned.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM conversions WHERE converted_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, wrapErr("failed to prune conversions", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}
