package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS deals (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	industry   TEXT NOT NULL DEFAULT '',
	price      REAL NOT NULL DEFAULT 0,
	ebitda     REAL NOT NULL DEFAULT 0,
	currency   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id     INTEGER NOT NULL,
	source_name TEXT NOT NULL,
	mime_type   TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	FOREIGN KEY (deal_id) REFERENCES deals(id)
);

CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL,
	ord         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	meta_json   TEXT,
	hash        TEXT NOT NULL,
	UNIQUE (document_id, ord),
	FOREIGN KEY (document_id) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id INTEGER PRIMARY KEY,
	dim      INTEGER NOT NULL,
	vector   BLOB NOT NULL,
	FOREIGN KEY (chunk_id) REFERENCES chunks(id)
);

CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	deal_id     INTEGER NOT NULL,
	question    TEXT NOT NULL,
	output_json TEXT NOT NULL,
	meta_json   TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lineage_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id TEXT NOT NULL,
	chunk_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	score       REAL NOT NULL DEFAULT 0,
	rank        INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (analysis_id) REFERENCES analyses(id)
);

CREATE TABLE IF NOT EXISTS stage_outcomes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id     TEXT NOT NULL,
	deal_id        INTEGER NOT NULL,
	complexity     TEXT NOT NULL,
	triage_outcome TEXT NOT NULL,
	used_synthesis INTEGER NOT NULL DEFAULT 0,
	confidence     REAL NOT NULL,
	citations      INTEGER NOT NULL DEFAULT 0,
	guardrail      INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_deal ON documents(deal_id);
CREATE INDEX IF NOT EXISTS idx_analyses_deal ON analyses(deal_id, created_at);
CREATE INDEX IF NOT EXISTS idx_stage_outcomes_path ON stage_outcomes(complexity, used_synthesis);
`

// #endregion schema

// #region store-struct
// Store is the SQLite persistence layer: deals, documents with embedded
// chunks, analyses with lineage, and per-request stage outcomes.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Name() string { return "sqlite" }

// #endregion close

// #region deals
// CreateDeal inserts a deal and returns its id. A non-zero deal.ID is kept.
func (s *Store) CreateDeal(ctx context.Context, deal valuation.DealFacts) (int64, error) {
	if strings.TrimSpace(deal.Name) == "" {
		return 0, errors.New("create deal: name is required")
	}
	var id any
	if deal.ID != 0 {
		id = deal.ID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (id, name, industry, price, ebitda, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, deal.Name, deal.Industry, deal.Price, deal.EBITDA, deal.Currency, nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert deal: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("deal id: %w", err)
	}
	return newID, nil
}

// GetDeal reads one deal. A missing deal wraps ErrNotFound.
func (s *Store) GetDeal(ctx context.Context, id int64) (valuation.DealFacts, error) {
	var d valuation.DealFacts
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, industry, price, ebitda, currency FROM deals WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.Industry, &d.Price, &d.EBITDA, &d.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return valuation.DealFacts{}, fmt.Errorf("deal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return valuation.DealFacts{}, fmt.Errorf("get deal %d: %w", id, err)
	}
	return d, nil
}

// ListDeals returns all deals ordered by id.
func (s *Store) ListDeals(ctx context.Context) ([]valuation.DealFacts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, industry, price, ebitda, currency FROM deals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var out []valuation.DealFacts
	for rows.Next() {
		var d valuation.DealFacts
		if err := rows.Scan(&d.ID, &d.Name, &d.Industry, &d.Price, &d.EBITDA, &d.Currency); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// #endregion deals
