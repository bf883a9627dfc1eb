package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ccollicutt/halog/pkg/parser"
)

// Timestamps are stored as UTC text in this layout, which sorts
// chronologically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// InsertRecords writes records in one transaction. Rows already present for
// the same (timestamp, device, parameter, statistic) are left untouched, so
// re-importing a file is harmless. It returns the number of new rows.
func (s *Store) InsertRecords(ctx context.Context, runID string, records []parser.Record) (int, error) {
	inserted := 0
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO readings
				(run_id, timestamp, device_id, parameter, statistic, value, count,
				 unit, description, quality, raw_parameter_name, line_number)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			res, err := stmt.ExecContext(ctx,
				runID, r.Timestamp.UTC().Format(timeLayout), r.DeviceID, r.Parameter,
				string(r.Statistic), r.Value, r.Count, r.Unit, r.Description,
				string(r.Quality), r.RawParameterName, r.LineNumber,
			)
			if err != nil {
				return fmt.Errorf("insert reading line %d: %w", r.LineNumber, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Filter narrows LoadRecords. Zero fields match everything; Since is
// inclusive and Until exclusive.
type Filter struct {
	DeviceID  string
	Parameter string
	Statistic parser.Statistic
	Since     time.Time
	Until     time.Time
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.DeviceID != "" {
		clauses = append(clauses, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Parameter != "" {
		clauses = append(clauses, "parameter = ?")
		args = append(args, f.Parameter)
	}
	if f.Statistic != "" {
		clauses = append(clauses, "statistic = ?")
		args = append(args, string(f.Statistic))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, f.Until.UTC().Format(timeLayout))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// LoadRecords returns the matching readings as a canonical table, ordered
// by timestamp and then insertion order.
func (s *Store) LoadRecords(ctx context.Context, f Filter) (*parser.Table, error) {
	where, args := f.where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, device_id, parameter, statistic, value, count,
		       unit, description, quality, raw_parameter_name, line_number
		FROM readings`+where+`
		ORDER BY timestamp, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var records []parser.Record
	for rows.Next() {
		var (
			r          parser.Record
			ts         string
			stat, qual string
		)
		if err := rows.Scan(&ts, &r.DeviceID, &r.Parameter, &stat, &r.Value, &r.Count,
			&r.Unit, &r.Description, &qual, &r.RawParameterName, &r.LineNumber); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q: %w", ts, err)
		}
		r.Statistic = parser.Statistic(stat)
		r.Quality = parser.Quality(qual)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return parser.NewTable(records), nil
}

// FileMetadata records one imported file.
type FileMetadata struct {
	RunID           string          `json:"run_id"`
	Filename        string          `json:"filename"`
	FileSize        int64           `json:"file_size"`
	RecordsImported int             `json:"records_imported"`
	Stats           parser.RunStats `json:"parsing_stats"`
	ImportedAt      time.Time       `json:"imported_at"`
}

// InsertFileMetadata records an import run.
func (s *Store) InsertFileMetadata(ctx context.Context, m FileMetadata) error {
	stats, err := json.Marshal(m.Stats)
	if err != nil {
		return fmt.Errorf("encode parsing stats: %w", err)
	}
	if m.ImportedAt.IsZero() {
		m.ImportedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_metadata (run_id, filename, file_size, records_imported, parsing_stats, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Filename, m.FileSize, m.RecordsImported, string(stats),
		m.ImportedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert file metadata for %s: %w", m.Filename, err)
	}
	return nil
}

// Files lists imported files, newest first.
func (s *Store) Files(ctx context.Context) ([]FileMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, filename, file_size, records_imported, parsing_stats, imported_at
		FROM file_metadata
		ORDER BY imported_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query file metadata: %w", err)
	}
	defer rows.Close()

	var out []FileMetadata
	for rows.Next() {
		var (
			m            FileMetadata
			stats, stamp string
		)
		if err := rows.Scan(&m.RunID, &m.Filename, &m.FileSize, &m.RecordsImported, &stats, &stamp); err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &m.Stats); err != nil {
			return nil, fmt.Errorf("decode parsing stats of %s: %w", m.Filename, err)
		}
		if m.ImportedAt, err = time.Parse(timeLayout, stamp); err != nil {
			return nil, fmt.Errorf("parse imported_at %q: %w", stamp, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Summary counts what the store holds.
type Summary struct {
	Readings   int       `json:"readings"`
	Devices    int       `json:"devices"`
	Parameters int       `json:"parameters"`
	Files      int       `json:"files"`
	First      time.Time `json:"first,omitempty"`
	Last       time.Time `json:"last,omitempty"`
}

// Summary returns row counts and the covered time range.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var (
		sum         Summary
		first, last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT device_id), COUNT(DISTINCT parameter),
		       MIN(timestamp), MAX(timestamp)
		FROM readings`,
	).Scan(&sum.Readings, &sum.Devices, &sum.Parameters, &first, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize readings: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&sum.Files); err != nil {
		return Summary{}, fmt.Errorf("count files: %w", err)
	}
	if first.Valid {
		if sum.First, err = time.Parse(timeLayout, first.String); err != nil {
			return Summary{}, fmt.Errorf("parse first timestamp: %w", err)
		}
	}
	if last.Valid {
		if sum.Last, err = time.Parse(timeLayout, last.String); err != nil {
			return Summary{}, fmt.Errorf("parse last timestamp: %w", err)
		}
	}
	return sum, nil
}
