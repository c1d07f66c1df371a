package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region save-analysis
// SaveAnalysis persists an analysis and its lineage events atomically and
// returns the analysis id.
func (s *Store) SaveAnalysis(ctx context.Context, rec AnalysisRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	out, err := json.Marshal(rec.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var metaJSON any
	if rec.Meta != nil {
		b, err := json.Marshal(rec.Meta)
		if err != nil {
			return "", fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (id, request_id, deal_id, question, output_json, meta_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.DealID, rec.Question, string(out), metaJSON,
		rec.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}

	for _, ev := range rec.Lineage {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lineage_events (analysis_id, chunk_id, kind, score, rank) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, ev.ChunkID, string(ev.Kind), ev.Score, ev.Rank,
		); err != nil {
			return "", fmt.Errorf("insert lineage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.ID, nil
}

// #endregion save-analysis

// #region list-analyses
// ListAnalyses returns the most recent analyses, newest first, with their
// lineage. dealID 0 lists every deal.
func (s *Store) ListAnalyses(ctx context.Context, dealID int64, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, request_id, deal_id, question, output_json, meta_json, created_at FROM analyses`
	var args []any
	if dealID != 0 {
		query += ` WHERE deal_id = ?`
		args = append(args, dealID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var outJSON, createdStr string
		var metaJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.DealID, &rec.Question, &outJSON, &metaJSON, &createdStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(outJSON), &rec.Payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal payload %s: %w", rec.ID, err)
		}
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &rec.Meta); err != nil {
				rows.Close()
				return nil, fmt.Errorf("unmarshal meta %s: %w", rec.ID, err)
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// release the connection before the lineage queries; :memory: has only one
	rows.Close()

	for i := range records {
		lineage, err := s.lineage(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Lineage = lineage
	}
	return records, nil
}

func (s *Store) lineage(ctx context.Context, analysisID string) ([]LineageEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, kind, score, rank FROM lineage_events WHERE analysis_id = ? ORDER BY id`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("lineage %s: %w", analysisID, err)
	}
	defer rows.Close()

	var out []LineageEvent
	for rows.Next() {
		var ev LineageEvent
		var kind string
		if err := rows.Scan(&ev.ChunkID, &kind, &ev.Score, &ev.Rank); err != nil {
			return nil, fmt.Errorf("scan lineage: %w", err)
		}
		ev.Kind = LineageKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion list-analyses

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
