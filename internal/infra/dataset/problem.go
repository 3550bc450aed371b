// Package dataset reads code_contests problem records.
package dataset

import (
	"fmt"
	"time"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// LanguageFromCode maps the dataset's numeric language enum to a Language.
func LanguageFromCode(code int) (execution.Language, bool) {
	switch code {
	case 1:
		return execution.LanguagePython2, true
	case 2:
		return execution.LanguageCPP, true
	case 3:
		return execution.LanguagePython3, true
	case 4:
		return execution.LanguageJava, true
	default:
		return "", false
	}
}

// Example is one input with its expected output.
type Example struct {
	Input  string
	Output string
}

// Problem is a decoded dataset record. It is treated as read-only once decoded.
type Problem struct {
	ID               int
	Name             string
	Description      string
	PublicTests      []Example
	PrivateTests     []Example
	GeneratedTests   []Example
	Solutions        []execution.Solution
	TimeLimit        time.Duration
	MemoryLimitBytes int64
}

// FilterSolutions returns the solutions written in lang, in record order.
// The problem itself is left untouched.
func (p Problem) FilterSolutions(lang execution.Language) []execution.Solution {
	filtered := make([]execution.Solution, 0, len(p.Solutions))
	for _, solution := range p.Solutions {
		if solution.Language == lang {
			filtered = append(filtered, solution)
		}
	}
	return filtered
}

// TestCases concatenates public, private and generated tests and keeps at most
// max of them. A non-positive max keeps every test.
func (p Problem) TestCases(max int) []execution.TestCase {
	total := len(p.PublicTests) + len(p.PrivateTests) + len(p.GeneratedTests)
	if max > 0 && max < total {
		total = max
	}

	tests := make([]execution.TestCase, 0, total)
	for _, group := range [][]Example{p.PublicTests, p.PrivateTests, p.GeneratedTests} {
		for _, example := range group {
			if len(tests) == total {
				return tests
			}
			tests = append(tests, execution.TestCase{
				Number:         len(tests) + 1,
				Input:          example.Input,
				ExpectedOutput: example.Output,
			})
		}
	}
	return tests
}

// Limits returns the resource limits recorded with the problem.
func (p Problem) Limits() execution.RunLimits {
	return execution.RunLimits{
		TimeLimit:        p.TimeLimit,
		MemoryLimitBytes: p.MemoryLimitBytes,
	}
}

func solutionID(problem string, idx int) string {
	return fmt.Sprintf("%s#%d", problem, idx)
}
