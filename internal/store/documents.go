package store

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region ingest
// IngestDocument stores a document and its chunks for a deal in one
// transaction. Chunks with an empty hash get the sha256 of their text.
func (s *Store) IngestDocument(ctx context.Context, dealID int64, doc Document) (int64, error) {
	if doc.SourceName == "" {
		return 0, errors.New("ingest: source name is required")
	}
	if _, err := s.GetDeal(ctx, dealID); err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (deal_id, source_name, mime_type, created_at) VALUES (?, ?, ?, ?)`,
		dealID, doc.SourceName, doc.MimeType, nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	for _, c := range doc.Chunks {
		hash := c.Hash
		if hash == "" {
			hash = HashText(c.Text)
		}
		var metaJSON any
		if len(c.Meta) > 0 {
			b, err := json.Marshal(c.Meta)
			if err != nil {
				return 0, fmt.Errorf("marshal chunk meta: %w", err)
			}
			metaJSON = string(b)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (document_id, ord, text, meta_json, hash) VALUES (?, ?, ?, ?, ?)`,
			docID, c.Ord, c.Text, metaJSON, hash,
		)
		if err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", c.Ord, err)
		}
		if len(c.Embedding) == 0 {
			continue
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("chunk id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (chunk_id, dim, vector) VALUES (?, ?, ?)`,
			chunkID, len(c.Embedding), encodeVector(c.Embedding),
		); err != nil {
			return 0, fmt.Errorf("insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return docID, nil
}

// HashText is the content hash recorded for chunks ingested without one.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// #endregion ingest

// #region search
// Search is the local vector backend: cosine similarity against every stored
// embedding of the deal (all deals when dealID is 0), highest first.
// Vectors of a different dimension are skipped.
func (s *Store) Search(ctx context.Context, vec []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}
	query := `SELECT c.id, c.text, c.meta_json, d.id, d.source_name, e.vector
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE e.dim = ?`
	args := []any{len(vec)}
	if dealID != 0 {
		query += ` AND d.deal_id = ?`
		args = append(args, dealID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []valuation.EvidenceChunk
	for rows.Next() {
		var (
			chunkID, docID int64
			text, source   string
			metaJSON       sql.NullString
			blob           []byte
		)
		if err := rows.Scan(&chunkID, &text, &metaJSON, &docID, &source, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		sim := 1 - cosineDistance(vec, decodeVector(blob))
		c := valuation.EvidenceChunk{
			ChunkID:    strconv.FormatInt(chunkID, 10),
			Text:       text,
			Source:     source,
			DocumentID: strconv.FormatInt(docID, 10),
			Similarity: sim,
			Score:      sim,
		}
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &c.Meta); err != nil {
				return nil, fmt.Errorf("chunk %d meta: %w", chunkID, err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b valuation.EvidenceChunk) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// cosineDistance is 1 - cos(a, b). A zero vector is at distance 1.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// #endregion search

// #region vector-encoding
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding
