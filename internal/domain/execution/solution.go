package execution

// Solution is an untrusted program source paired with its language tag.
type Solution struct {
	ID       string
	Language Language
	Source   string
}

// Job bundles everything needed for one harness run.
type Job struct {
	ID       string
	Solution Solution
	Tests    []TestCase
	Options  Options
}

// RunReport captures the outcome of executing a Job.
//
// Err is set only for run-level failures; Result is nil in that case.
type RunReport struct {
	Job    Job
	Result *MultiTestResult
	Err    error
}
