// valtric runs valuation analyses against stored deals.
//
// Usage:
//
//	valtric analyze --deal-id N [--question Q]
//	valtric ingest FILE
//	valtric inspect [--deal-id N] [--limit K] [--json]
//	valtric replay FIXTURE [--parallel P]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hussain0327/ValtricConsulting/internal/analyzer"
	"github.com/Hussain0327/ValtricConsulting/internal/config"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// version is set at build time via -ldflags.
var version = "dev"

// #region root

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// loaded is filled by the root pre-run before any subcommand executes.
var loaded config.Config

var rootCmd = &cobra.Command{
	Use:   "valtric",
	Short: "Evidence-cited deal valuation",
	Long: "Valtric answers valuation questions about a deal: it retrieves evidence,\n" +
		"runs the triage and synthesis stages, and returns a schema-valid verdict\n" +
		"that cites the chunks it relied on.",
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootFlags.configPath)
		if err != nil {
			return err
		}
		if rootFlags.logLevel != "" {
			cfg.LogLevel = rootFlags.logLevel
		}
		if rootFlags.logFormat != "" {
			cfg.LogFormat = rootFlags.logFormat
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
		loaded = cfg
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "valtric.yaml", "Path to YAML config (missing file means defaults)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.Version = version
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the root command and maps its error to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	code, label := exitCode(err)
	fmt.Fprintf(stderr, "%s: %v\n", label, err)
	return code
}

// #endregion root

// #region exit-codes

const (
	exitEvidence = 3
	exitNotFound = 4
	exitDeadline = 5
)

func exitCode(err error) (int, string) {
	switch {
	case errors.Is(err, valuation.ErrEvidenceRequired):
		return exitEvidence, "evidence_required"
	case errors.Is(err, analyzer.ErrDealNotFound):
		return exitNotFound, "not_found"
	case errors.Is(err, analyzer.ErrDeadlineExceeded):
		return exitDeadline, "deadline_exceeded"
	}
	return 1, "error"
}

// #endregion exit-codes
