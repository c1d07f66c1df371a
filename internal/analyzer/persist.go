package analyzer

// #region imports
import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region persist

// persist writes the analysis, its lineage and the stage outcome. It returns
// the analysis id, or "" when saving failed.
func (s *Service) persist(ctx context.Context, deal valuation.DealFacts, question string, res Result, comps []valuation.EvidenceChunk) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	log := s.log.With("request_id", res.Meta.RequestID, "deal_id", deal.ID)

	rec := store.AnalysisRecord{
		RequestID: res.Meta.RequestID,
		DealID:    deal.ID,
		Question:  question,
		Payload:   res.Payload,
		Meta:      metaMap(res.Meta),
		Lineage:   lineage(res.Payload, comps),
	}
	id, err := s.opts.Sink.SaveAnalysis(ctx, rec)
	if err != nil {
		log.Warn("persist analysis failed", "error", err)
		id = ""
	}

	outcome := store.StageOutcome{
		RequestID:     res.Meta.RequestID,
		DealID:        deal.ID,
		Complexity:    string(res.Meta.Path),
		TriageOutcome: string(res.Meta.TriageOutcome),
		UsedSynthesis: res.Meta.UsedSynthesis,
		Confidence:    res.Payload.Confidence,
		Citations:     len(res.Payload.CompsUsed),
		Guardrail:     res.Payload.HasFlag(valuation.FlagNoCitableEvidence),
	}
	if err := s.opts.Sink.RecordOutcome(ctx, outcome); err != nil {
		log.Warn("record stage outcome failed", "error", err)
	}
	return id
}

// lineage records every retrieved chunk with its rank, then every cited chunk
// in citation order.
func lineage(p valuation.Payload, comps []valuation.EvidenceChunk) []store.LineageEvent {
	scores := make(map[string]float64, len(comps))
	out := make([]store.LineageEvent, 0, len(comps)+len(p.CompsUsed))
	for i, c := range comps {
		scores[c.ChunkID] = c.Score
		out = append(out, store.LineageEvent{ChunkID: c.ChunkID, Kind: store.LineageRetrieved, Score: c.Score, Rank: i})
	}
	for i, cit := range p.CompsUsed {
		id := strings.TrimPrefix(cit.SourceID, valuation.CitationPrefix)
		out = append(out, store.LineageEvent{ChunkID: id, Kind: store.LineageCited, Score: scores[id], Rank: i})
	}
	return out
}

func metaMap(m Meta) map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// #endregion
