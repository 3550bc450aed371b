package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/app/producer"
	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/infra/dataset"
)

var (
	runDatasetFlag       string
	runLanguageFlag      string
	runProblemFlag       string
	runMaxTestsFlag      int
	runPoolSizeFlag      int
	runStopFlag          bool
	runReportFlag        bool
	runProblemLimitsFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run dataset solutions against their tests",
	Long: `Read code_contests problems from a JSON lines or YAML file and run every
solution written in the selected language against the problem's first tests
(public, then private, then generated).

One JSON line is printed per problem:
  {"name": "...", "number": <solutions run>, "times": [<ms per solution>]}
A time is zero unless every test of that solution passed.

Examples:
  judgebox run --dataset valid.jsonl
  judgebox run --dataset valid.jsonl --problem "1548_E. Gregor and the Two Painters" --report`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDatasetFlag, "dataset", "", "Problem file (.jsonl, .json, .yaml)")
	runCmd.Flags().StringVar(&runLanguageFlag, "language", "python3", "Only run solutions in this language")
	runCmd.Flags().StringVar(&runProblemFlag, "problem", "", "Only run the problem with this name")
	runCmd.Flags().IntVar(&runMaxTestsFlag, "max-tests", 10, "Tests per problem, 0 for all")
	runCmd.Flags().IntVar(&runPoolSizeFlag, "pool-size", 0, "Concurrent tests per solution (overrides config)")
	runCmd.Flags().BoolVar(&runStopFlag, "stop-on-first-failure", true, "Skip tests after the first failing one (overrides config)")
	runCmd.Flags().BoolVar(&runReportFlag, "report", false, "Print a per-test report for every solution")
	runCmd.Flags().BoolVar(&runProblemLimitsFlag, "problem-limits", true, "Use the problem's time and memory limits when present")
	_ = runCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(runCmd)
}

type runSettings struct {
	language      execution.Language
	maxTests      int
	options       execution.Options
	report        bool
	problemLimits bool
}

func runRun(cmd *cobra.Command, _ []string) error {
	lang, err := execution.ParseLanguage(runLanguageFlag)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	settings := runSettings{
		language:      lang,
		maxTests:      runMaxTestsFlag,
		options:       a.cfg.Options(),
		report:        runReportFlag,
		problemLimits: runProblemLimitsFlag,
	}
	if cmd.Flags().Changed("pool-size") {
		settings.options.PoolSize = runPoolSizeFlag
	}
	if cmd.Flags().Changed("stop-on-first-failure") {
		settings.options.StopOnFirstFailure = runStopFlag
	}
	if err := settings.options.Validate(); err != nil {
		return err
	}

	reader, err := dataset.Open(runDatasetFlag)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if runProblemFlag != "" {
		problem, err := reader.Find(runProblemFlag)
		if err != nil {
			return err
		}
		return a.solveProblem(ctx, out, problem, settings)
	}

	for {
		problem, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := a.solveProblem(ctx, out, problem, settings); err != nil {
			return err
		}
	}
}

// solveProblem runs every retained solution of problem and prints its line.
func (a *app) solveProblem(ctx context.Context, out io.Writer, problem dataset.Problem, settings runSettings) error {
	options := settings.options
	if settings.problemLimits {
		options = withProblemLimits(options, problem.Limits())
	}

	jobs := producer.FromProblem(problem, settings.language, settings.maxTests, options)
	a.logger.Info("solving problem",
		zap.String("problem", problem.Name),
		zap.Int("solutions", jobs.Len()),
	)

	var mu sync.Mutex
	reports := make(map[string]execution.RunReport, jobs.Len())
	err := a.service.ExecuteFromProducer(ctx, jobs, 0, a.cfg.Runner.MaxParallelJobs, func(report execution.RunReport) {
		if report.Err != nil {
			a.logger.Warn("solution run failed",
				zap.String("solution_id", report.Job.Solution.ID),
				zap.Error(report.Err),
			)
		}
		mu.Lock()
		reports[report.Job.ID] = report
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ordered := orderedReports(problem.FilterSolutions(settings.language), reports)
	if settings.report {
		for _, report := range ordered {
			writeReport(out, report)
		}
	}
	if err := writeProblemLine(out, problem.Name, ordered); err != nil {
		return fmt.Errorf("writing result for %q: %w", problem.Name, err)
	}
	return nil
}

func withProblemLimits(options execution.Options, limits execution.RunLimits) execution.Options {
	if limits.TimeLimit > 0 {
		options.TimeLimit = limits.TimeLimit
	}
	if limits.MemoryLimitBytes > 0 {
		options.MemoryLimitBytes = limits.MemoryLimitBytes
	}
	return options
}

// orderedReports lists reports in dataset order. Job IDs equal solution IDs.
func orderedReports(solutions []execution.Solution, reports map[string]execution.RunReport) []execution.RunReport {
	ordered := make([]execution.RunReport, 0, len(solutions))
	for _, solution := range solutions {
		if report, ok := reports[solution.ID]; ok {
			ordered = append(ordered, report)
		}
	}
	return ordered
}
