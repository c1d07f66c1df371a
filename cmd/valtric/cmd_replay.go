package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/replay"
)

var replayFlags struct {
	parallel int
	timeout  time.Duration
}

var replayCmd = &cobra.Command{
	Use:   "replay FIXTURE",
	Short: "Replay a fixture of recorded cases and report PASS/FAIL per case",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.IntVar(&replayFlags.parallel, "parallel", 1, "Cases to run concurrently")
	f.DurationVar(&replayFlags.timeout, "timeout", 0, "Per-case deadline (0 = request_timeout from config)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	fixture, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}

	cfg := replay.DefaultConfig()
	cfg.Parallel = replayFlags.parallel
	cfg.LLMConcurrency = loaded.Limits.LLMConcurrency
	cfg.Timeout = loaded.RequestTimeout
	if replayFlags.timeout > 0 {
		cfg.Timeout = replayFlags.timeout
	}
	cfg.Logger = logging.New("replay")

	rep := replay.Run(cmd.Context(), fixture, cfg)

	out := cmd.OutOrStdout()
	for _, r := range rep.Results {
		if r.Passed {
			fmt.Fprintf(out, "PASS %s\n", r.Name)
			continue
		}
		fmt.Fprintf(out, "FAIL %s: %s\n", r.Name, r.Detail)
	}
	fmt.Fprintf(out, "Evaluation complete: %d/%d\n", rep.Passed, rep.Total)
	if rep.Passed != rep.Total {
		return fmt.Errorf("%d case(s) failed", rep.Total-rep.Passed)
	}
	return nil
}
