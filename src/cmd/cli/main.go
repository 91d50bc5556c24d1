// Package main provides the testforge CLI: generate unit tests for analyzed
// C/C++ functions through an LLM backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"testforge-agent/src/broker"
	"testforge-agent/src/config"
	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
	"testforge-agent/src/mcp"
	"testforge-agent/src/orchestrate"
	"testforge-agent/src/schedule"
	"testforge-agent/src/tui"
)

var (
	appConfig *config.Config

	flagProvider    string
	flagModel       string
	flagStrategy    string
	flagWorkers     int
	flagOutputDir   string
	flagUnitTestDir string
	flagNoTUI       bool
	flagVerbose     bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "testforge",
	Short: "testforge - LLM-driven unit test generation for C/C++",
	Long: `testforge generates Google Test unit tests for C/C++ functions using an
LLM backend. Input is the analyzer's JSON output; output is one aggregate
test file per source file, plus per-run debug artifacts.

Configuration comes from TESTFORGE_* environment variables and may be
overridden by flags.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		appConfig, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		applyFlags(cmd)
		if err := appConfig.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
	},
}

// applyFlags overlays explicitly-set flags on the environment configuration.
func applyFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("provider") {
		appConfig.Provider = flagProvider
		if !cmd.Flags().Changed("model") {
			appConfig.Model = config.DefaultModelFor(flagProvider)
		}
	}
	if cmd.Flags().Changed("model") {
		appConfig.Model = flagModel
	}
	if cmd.Flags().Changed("strategy") {
		appConfig.Strategy = flagStrategy
	}
	if cmd.Flags().Changed("workers") {
		appConfig.MaxWorkers = flagWorkers
	}
	if cmd.Flags().Changed("output-dir") {
		appConfig.OutputDir = flagOutputDir
	}
	if cmd.Flags().Changed("unit-test-dir") {
		appConfig.UnitTestDir = flagUnitTestDir
	}
	if flagVerbose {
		appConfig.Verbose = true
	}
}

// generateCmd runs the full pipeline over an analyzer output file.
var generateCmd = &cobra.Command{
	Use:   "generate <functions.json>",
	Short: "Generate tests for the functions in an analyzer output file",
	Long: `Reads the analyzer's JSON output and generates Google Test files for every
non-static function in it.

By default a progress display runs in the terminal; use --no-tui for plain
log output (CI, scripting).

Example:
  testforge generate analyzed_functions.json --provider deepseek --strategy adaptive`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		functions, err := loadFunctions(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if flagNoTUI {
			runPlain(ctx, functions)
			return
		}
		runWithTUI(ctx, functions)
	},
}

func loadFunctions(path string) ([]contracts.AnalyzedFunction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var functions []contracts.AnalyzedFunction
	if err := json.Unmarshal(data, &functions); err != nil {
		return nil, fmt.Errorf("%s is not valid analyzer output: %w", path, err)
	}
	if len(functions) == 0 {
		return nil, fmt.Errorf("%s contains no functions", path)
	}
	return functions, nil
}

// runPlain executes the run with console logging and no TUI.
func runPlain(ctx context.Context, functions []contracts.AnalyzedFunction) {
	log := &logger.ConsoleLogger{Verbose: appConfig.Verbose}

	events, err := newEventBroker(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer events.Close()

	orchestrator, err := orchestrate.New(appConfig, events, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := orchestrator.Run(ctx, functions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printSummary(result.Summary)
	if result.Summary.Failed > 0 {
		os.Exit(1)
	}
}

// runWithTUI executes the run while the progress display consumes the event
// stream. Pipeline logging is silenced so it cannot corrupt the display.
func runWithTUI(ctx context.Context, functions []contracts.AnalyzedFunction) {
	log := logger.NewSilentLogger()

	events, err := newEventBroker(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer events.Close()

	subCtx, stopDisplay := context.WithCancel(ctx)
	defer stopDisplay()

	sub, err := events.Subscribe(subCtx, contracts.TopicGenerationEvents, "testforge-tui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	orchestrator, err := orchestrate.New(appConfig, events, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outcome := startRun(ctx, orchestrator, functions, stopDisplay)

	if err := tui.Run(sub); err != nil {
		fmt.Fprintf(os.Stderr, "Display error: %v\n", err)
	}

	run := <-outcome
	if run.err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", run.err)
		os.Exit(1)
	}
	printSummary(run.result.Summary)
	if run.result.Summary.Failed > 0 {
		os.Exit(1)
	}
}

type runOutcome struct {
	result *contracts.AggregatedResult
	err    error
}

// startRun executes the orchestrator in the background. A run that fails
// before completing never publishes its terminal event, so stopDisplay tears
// the event subscription down and the display exits instead of waiting
// forever.
func startRun(ctx context.Context, orchestrator *orchestrate.Orchestrator, functions []contracts.AnalyzedFunction, stopDisplay context.CancelFunc) <-chan runOutcome {
	outcome := make(chan runOutcome, 1)
	go func() {
		result, err := orchestrator.Run(ctx, functions)
		if err != nil {
			stopDisplay()
		}
		outcome <- runOutcome{result: result, err: err}
	}()
	return outcome
}

// newEventBroker returns the Redpanda broker when configured, otherwise the
// in-memory one.
func newEventBroker(log logger.Logger) (broker.Broker, error) {
	if len(appConfig.RedpandaBrokers) > 0 {
		return broker.NewRedpandaBroker(appConfig.RedpandaBrokers, log)
	}
	return broker.NewInMemoryBroker(), nil
}

func printSummary(summary contracts.RunSummary) {
	fmt.Printf("\nRun %s (%s/%s, %s strategy)\n",
		summary.RunID, summary.Provider, summary.Model, summary.Strategy)
	fmt.Printf("  functions: %d  ok: %d  failed: %d  (%.0f%%)\n",
		summary.TotalFunctions, summary.Successful, summary.Failed, summary.SuccessRate*100)
	fmt.Printf("  tokens: %d total, %.0f avg per function\n",
		summary.TotalTokens, summary.AverageTokens)
	fmt.Printf("  duration: %.1fs\n", summary.DurationSecs)
	for kind, count := range summary.FailuresByKind {
		fmt.Printf("  failure: %dx %s\n", count, kind)
	}
}

// strategiesCmd lists the execution strategies.
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available execution strategies",
	Run: func(cmd *cobra.Command, args []string) {
		descriptions := map[string]string{
			"sequential": "one request at a time with a pause between requests",
			"concurrent": "bounded worker pool, output order preserved",
			"adaptive":   "worker pool resized from observed success rates",
		}
		for _, name := range schedule.Names() {
			marker := " "
			if name == appConfig.Strategy {
				marker = "*"
			}
			fmt.Printf("%s %-10s %s\n", marker, name, descriptions[name])
		}
	},
}

// mcpServerCmd runs the MCP server on stdio.
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Run as an MCP server over stdio",
	Long: `Serves the generation pipeline over the Model Context Protocol so agent
frontends can call generate_tests, get_run_summary, and
get_function_result. All logging is suppressed: stdout carries the
protocol stream.`,
	Run: func(cmd *cobra.Command, args []string) {
		server := mcp.NewServer(appConfig, logger.NewSilentLogger())
		if err := server.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "generation backend (openai, deepseek, dify, local, mock)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model identifier for the selected provider")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	generateCmd.Flags().StringVar(&flagStrategy, "strategy", "", "execution strategy (sequential, concurrent, adaptive)")
	generateCmd.Flags().IntVar(&flagWorkers, "workers", 0, "max concurrent workers")
	generateCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "directory for generated tests and artifacts")
	generateCmd.Flags().StringVar(&flagUnitTestDir, "unit-test-dir", "", "existing unit-test directory to scan for fixtures")
	generateCmd.Flags().BoolVar(&flagNoTUI, "no-tui", false, "plain log output instead of the progress display")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(mcpServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
