package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hussain0327/ValtricConsulting/internal/analyzer"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

var analyzeFlags struct {
	dealID   int64
	question string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a stored deal and print {analysis, meta} as JSON",
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.Int64Var(&analyzeFlags.dealID, "deal-id", 0, "Deal ID (required)")
	f.StringVar(&analyzeFlags.question, "question", "", "Valuation question; empty asks for a general valuation")

	_ = analyzeCmd.MarkFlagRequired("deal-id")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	a, err := openApp(loaded)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.analyzer()
	if err != nil {
		return err
	}
	res, err := svc.Analyze(cmd.Context(), analyzeFlags.dealID, analyzeFlags.question)
	if err != nil {
		if errors.Is(err, valuation.ErrEvidenceRequired) ||
			errors.Is(err, analyzer.ErrDealNotFound) ||
			errors.Is(err, analyzer.ErrDeadlineExceeded) {
			return err
		}
		a.log.Error("analysis failed", "deal_id", analyzeFlags.dealID, "error", err)
		return errors.New("analysis failed")
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
