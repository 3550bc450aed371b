package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// problemLine is printed once per dataset problem.
type problemLine struct {
	Name   string    `json:"name"`
	Number int       `json:"number"`
	Times  []float64 `json:"times"`
}

// solutionTime is the summed duration of passed tests in milliseconds, or zero
// unless every test that ran passed.
func solutionTime(report execution.RunReport) float64 {
	if report.Err != nil || report.Result == nil {
		return 0
	}
	return float64(report.Result.TotalTime().Nanoseconds()) / 1e6
}

func writeProblemLine(w io.Writer, name string, reports []execution.RunReport) error {
	line := problemLine{
		Name:   name,
		Number: len(reports),
		Times:  make([]float64, 0, len(reports)),
	}
	for _, report := range reports {
		line.Times = append(line.Times, solutionTime(report))
	}
	return json.NewEncoder(w).Encode(line)
}

func writeReport(w io.Writer, report execution.RunReport) {
	fmt.Fprintf(w, "Solution %s\n", report.Job.Solution.ID)
	if report.Err != nil {
		fmt.Fprintf(w, "Run failed: %v\n", report.Err)
		return
	}
	result := report.Result
	if result.Compilation.Succeeded() {
		fmt.Fprintln(w, "Compilation succeeded")
	} else {
		fmt.Fprintln(w, "Compilation failed")
		if result.Compilation.Diagnostic != "" {
			fmt.Fprintln(w, result.Compilation.Diagnostic)
		}
	}
	for idx, test := range result.Tests {
		switch test.Status {
		case execution.TestSkipped:
			fmt.Fprintf(w, "Test %d did not run.\n", idx)
		case execution.TestPassed:
			fmt.Fprintf(w, "Test %d passed.\n", idx)
		default:
			fmt.Fprintf(w, "Test %d failed.\n", idx)
		}
	}
}
