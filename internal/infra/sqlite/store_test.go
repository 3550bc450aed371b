package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := execution.Aggregate(execution.CompilationOutcome{
		Status:   execution.CompilationSuccess,
		Duration: 2 * time.Second,
	}, []execution.TestOutcome{
		{Case: execution.TestCase{Number: 1}, Status: execution.TestPassed, Stdout: "3\n", Duration: 15 * time.Millisecond},
		{Case: execution.TestCase{Number: 2}, Status: execution.TestFailed, Reason: execution.ReasonRuntimeError, ExitCode: 1, Stderr: "Traceback"},
		{Case: execution.TestCase{Number: 3}, Status: execution.TestSkipped},
	})
	report := execution.RunReport{
		Job: execution.Job{
			ID:       "job-1",
			Solution: execution.Solution{ID: "sol-1", Language: execution.LanguagePython3},
		},
		Result: &result,
	}

	id, err := s.Save(ctx, report)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "sol-1", got.SolutionID)
	assert.Equal(t, execution.LanguagePython3, got.Language)
	assert.False(t, got.CreatedAt.IsZero())
	require.NotNil(t, got.Result)
	assert.Equal(t, result.Compilation, got.Result.Compilation)
	require.Len(t, got.Result.Tests, 3)
	assert.Equal(t, result.Tests[1].Reason, got.Result.Tests[1].Reason)
	assert.Equal(t, result.Tests[1].Stderr, got.Result.Tests[1].Stderr)
	assert.Equal(t, result.Tests[0].Duration, got.Result.Tests[0].Duration)
	assert.Equal(t, result.Summary(), got.Result.Summary())
}

func TestSaveRunError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	report := execution.RunReport{Job: execution.Job{ID: "job-2"}, Err: errors.New("docker daemon unreachable")}
	require.NoError(t, s.SaveRunReport(ctx, report))

	ids, err := s.ListRunIDs(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	got, err := s.GetRun(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, got.Result)
	assert.Equal(t, "docker daemon unreachable", got.Error)
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRunIDsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	report := execution.RunReport{Job: execution.Job{ID: "job-3"}, Err: errors.New("x")}
	first, err := s.Save(ctx, report)
	require.NoError(t, err)
	second, err := s.Save(ctx, report)
	require.NoError(t, err)

	ids, err := s.ListRunIDs(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, ids)

	ids, err = s.ListRunIDs(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpenFileRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), execution.RunReport{Job: execution.Job{ID: "persisted"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.ListRunIDs(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
