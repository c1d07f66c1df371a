package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hussain0327/ValtricConsulting/internal/store"
)

var inspectFlags struct {
	dealID  int64
	limit   int
	jsonOut bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List stored analyses and the per-path summary",
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.Int64Var(&inspectFlags.dealID, "deal-id", 0, "Only analyses for this deal (0 = all deals)")
	f.IntVar(&inspectFlags.limit, "limit", 20, "Show the N most recent analyses")
	f.BoolVar(&inspectFlags.jsonOut, "json", false, "Output as JSON instead of a table")
}

type inspectReport struct {
	Analyses []analysisRow   `json:"analyses"`
	Paths    []store.PathStat `json:"paths"`
}

type analysisRow struct {
	ID         string   `json:"id"`
	DealID     int64    `json:"deal_id"`
	Question   string   `json:"question"`
	Conclusion string   `json:"conclusion"`
	Multiple   float64  `json:"implied_multiple"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations"`
	Retrieved  int      `json:"retrieved"`
	CreatedAt  string   `json:"created_at"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	a, err := openApp(loaded)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	records, err := a.store.ListAnalyses(ctx, inspectFlags.dealID, inspectFlags.limit)
	if err != nil {
		return err
	}
	paths, err := a.store.PathSummary(ctx)
	if err != nil {
		return err
	}

	rep := inspectReport{Analyses: make([]analysisRow, 0, len(records)), Paths: paths}
	for _, r := range records {
		rep.Analyses = append(rep.Analyses, toRow(r))
	}

	out := cmd.OutOrStdout()
	if inspectFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(out, rep)
	return nil
}

func toRow(r store.AnalysisRecord) analysisRow {
	row := analysisRow{
		ID:         r.ID,
		DealID:     r.DealID,
		Question:   r.Question,
		Conclusion: string(r.Payload.Conclusion),
		Multiple:   r.Payload.ImpliedMultiple,
		Confidence: r.Payload.Confidence,
		Citations:  []string{},
		CreatedAt:  r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	for _, ev := range r.Lineage {
		switch ev.Kind {
		case store.LineageCited:
			row.Citations = append(row.Citations, ev.ChunkID)
		case store.LineageRetrieved:
			row.Retrieved++
		}
	}
	return row
}

func printReport(w io.Writer, rep inspectReport) {
	if len(rep.Analyses) == 0 {
		fmt.Fprintln(w, "no analyses found")
	} else {
		fmt.Fprintf(w, "%-36s  %-6s  %-12s  %8s  %5s  %-10s  %s\n",
			"ID", "DEAL", "CONCLUSION", "MULTIPLE", "CONF", "CITED", "QUESTION")
		for _, r := range rep.Analyses {
			fmt.Fprintf(w, "%-36s  %-6d  %-12s  %8.2f  %5.2f  %-10s  %s\n",
				r.ID, r.DealID, r.Conclusion, r.Multiple, r.Confidence,
				fmt.Sprintf("%d/%d", len(r.Citations), r.Retrieved), truncate(r.Question, 60))
		}
	}

	if len(rep.Paths) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-10s  %-9s  %6s  %10s  %9s\n", "PATH", "SYNTHESIS", "COUNT", "CONFIDENCE", "GUARDRAIL")
	for _, p := range rep.Paths {
		fmt.Fprintf(w, "%-10s  %-9t  %6d  %10.3f  %9.3f\n",
			p.Complexity, p.UsedSynthesis, p.Count, p.WeightedConfidence, p.GuardrailRate)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
