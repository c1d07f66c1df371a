package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Load a deal and its documents from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

// #region ingest-file

// ingestFile names an existing deal by deal_id or creates one from deal.
type ingestFile struct {
	DealID    int64                `json:"deal_id"`
	Deal      *valuation.DealFacts `json:"deal"`
	Documents []ingestDocument     `json:"documents"`
}

type ingestDocument struct {
	SourceName string        `json:"source_name"`
	MimeType   string        `json:"mime_type"`
	Chunks     []ingestChunk `json:"chunks"`
}

type ingestChunk struct {
	Ord       *int           `json:"ord"`
	Text      string         `json:"text"`
	Meta      map[string]any `json:"meta"`
	Hash      string         `json:"hash"`
	Embedding []float32      `json:"embedding"`
}

func loadIngestFile(path string) (ingestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingestFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	var f ingestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return ingestFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.DealID == 0 && f.Deal == nil {
		return ingestFile{}, fmt.Errorf("%s: deal_id or deal is required", path)
	}
	return f, nil
}

// toDocument converts one file document, numbering chunks without an ord by
// position and hashing chunks without a hash.
func (d ingestDocument) toDocument() store.Document {
	doc := store.Document{SourceName: d.SourceName, MimeType: d.MimeType}
	for i, c := range d.Chunks {
		ord := i
		if c.Ord != nil {
			ord = *c.Ord
		}
		hash := c.Hash
		if hash == "" {
			hash = store.HashText(c.Text)
		}
		doc.Chunks = append(doc.Chunks, store.Chunk{
			Ord: ord, Text: c.Text, Meta: c.Meta, Hash: hash, Embedding: c.Embedding,
		})
	}
	return doc
}

// #endregion ingest-file

// #region ingest-run

func runIngest(cmd *cobra.Command, args []string) error {
	f, err := loadIngestFile(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(loaded)
	if err != nil {
		return err
	}
	defer a.Close()

	emb, err := a.embedder()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	dealID, err := ingest(ctx, a.store, emb, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d document(s) for deal %d\n", len(f.Documents), dealID)
	return nil
}

// ingest creates the deal when needed, fills missing embeddings and stores
// every document. Without an embedder, chunks lacking vectors are stored but
// never returned by search.
func ingest(ctx context.Context, st *store.Store, emb backend.Embedder, f ingestFile) (int64, error) {
	dealID := f.DealID
	if dealID == 0 {
		id, err := st.CreateDeal(ctx, *f.Deal)
		if err != nil {
			return 0, fmt.Errorf("create deal: %w", err)
		}
		dealID = id
	}

	for _, d := range f.Documents {
		doc := d.toDocument()
		if err := embedMissing(ctx, emb, doc.Chunks); err != nil {
			return 0, fmt.Errorf("embed %s: %w", doc.SourceName, err)
		}
		if _, err := st.IngestDocument(ctx, dealID, doc); err != nil {
			return 0, fmt.Errorf("ingest %s: %w", doc.SourceName, err)
		}
	}
	return dealID, nil
}

func embedMissing(ctx context.Context, emb backend.Embedder, chunks []store.Chunk) error {
	var idx []int
	var texts []string
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			idx = append(idx, i)
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 || emb == nil {
		return nil
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(texts) {
		return errors.New("embedder returned the wrong number of vectors")
	}
	for j, i := range idx {
		chunks[i].Embedding = vecs[j]
	}
	return nil
}

// #endregion ingest-run
