package store

// #region imports
import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"
)

// #endregion

// #region record-outcome

// RecordOutcome persists a single stage outcome row.
func (s *Store) RecordOutcome(ctx context.Context, rec StageOutcome) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stage_outcomes
		(request_id, deal_id, complexity, triage_outcome, used_synthesis,
		 confidence, citations, guardrail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.DealID,
		rec.Complexity,
		rec.TriageOutcome,
		boolInt(rec.UsedSynthesis),
		rec.Confidence,
		rec.Citations,
		boolInt(rec.Guardrail),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion

// #region path-summary

// pathDecayTau is the age, in hours, at which an outcome carries 1/e weight.
const pathDecayTau = 7.0 * 24.0

// PathSummary returns decay-weighted confidence and guardrail rate for every
// pipeline path seen so far, ordered by complexity then synthesis.
func (s *Store) PathSummary(ctx context.Context) ([]PathStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT complexity, used_synthesis, confidence, guardrail, created_at FROM stage_outcomes`)
	if err != nil {
		return nil, fmt.Errorf("path summary: %w", err)
	}
	defer rows.Close()

	type pathKey struct {
		complexity string
		synthesis  bool
	}
	type pathAccum struct {
		confSum     float64
		guardSum    float64
		totalWeight float64
		count       int
	}

	now := time.Now()
	accum := make(map[pathKey]*pathAccum)

	for rows.Next() {
		var complexity, createdAtStr string
		var synthesis, guardrail int
		var confidence float64
		if err := rows.Scan(&complexity, &synthesis, &confidence, &guardrail, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		weight := math.Exp(-now.Sub(createdAt).Hours() / pathDecayTau)

		k := pathKey{complexity: complexity, synthesis: synthesis == 1}
		a, ok := accum[k]
		if !ok {
			a = &pathAccum{}
			accum[k] = a
		}
		a.confSum += confidence * weight
		a.guardSum += float64(guardrail) * weight
		a.totalWeight += weight
		a.count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]PathStat, 0, len(accum))
	for k, a := range accum {
		st := PathStat{Complexity: k.complexity, UsedSynthesis: k.synthesis, Count: a.count}
		if a.totalWeight > 0 {
			st.WeightedConfidence = a.confSum / a.totalWeight
			st.GuardrailRate = a.guardSum / a.totalWeight
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b PathStat) int {
		if c := cmp.Compare(a.Complexity, b.Complexity); c != 0 {
			return c
		}
		return cmp.Compare(boolInt(a.UsedSynthesis), boolInt(b.UsedSynthesis))
	})
	return out, nil
}

// #endregion
