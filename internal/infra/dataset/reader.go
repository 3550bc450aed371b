package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// ErrProblemNotFound is returned by Find when no record has the requested name.
var ErrProblemNotFound = errors.New("problem not found")

// Format selects the record encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// FormatFromPath infers the record encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("dataset: cannot infer format of %q", path)
	}
}

type decoder interface {
	Decode(v any) error
}

// Reader streams problems from a dataset file.
type Reader struct {
	dec    decoder
	closer io.Closer
	count  int
}

// Open opens path and picks the decoder from its extension.
func Open(path string) (*Reader, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	r, err := NewReader(f, format)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader decodes problems from r. Closing the Reader does not close r.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	switch format {
	case FormatJSONL:
		return &Reader{dec: json.NewDecoder(r)}, nil
	case FormatYAML:
		return &Reader{dec: yaml.NewDecoder(r)}, nil
	default:
		return nil, fmt.Errorf("dataset: unsupported format %q", format)
	}
}

// Next returns the next problem or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Problem, error) {
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Problem{}, io.EOF
		}
		return Problem{}, fmt.Errorf("dataset: decode record %d: %w", r.count+1, err)
	}
	r.count++
	return rec.problem()
}

// Find scans forward for the problem called name.
func (r *Reader) Find(name string) (Problem, error) {
	for {
		problem, err := r.Next()
		if errors.Is(err, io.EOF) {
			return Problem{}, fmt.Errorf("%w: %q", ErrProblemNotFound, name)
		}
		if err != nil {
			return Problem{}, err
		}
		if problem.Name == name {
			return problem, nil
		}
	}
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// record mirrors the columnar layout of the published code_contests export.
type record struct {
	ID             int         `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description" yaml:"description"`
	PublicTests    testColumns `json:"public_tests" yaml:"public_tests"`
	PrivateTests   testColumns `json:"private_tests" yaml:"private_tests"`
	GeneratedTests testColumns `json:"generated_tests" yaml:"generated_tests"`
	Solutions      solutionSet `json:"solutions" yaml:"solutions"`
	TimeLimit      *protoTime  `json:"time_limit" yaml:"time_limit"`
	MemoryLimit    int64       `json:"memory_limit_bytes" yaml:"memory_limit_bytes"`
}

type testColumns struct {
	Input  []string `json:"input" yaml:"input"`
	Output []string `json:"output" yaml:"output"`
}

type solutionSet struct {
	Language []int    `json:"language" yaml:"language"`
	Solution []string `json:"solution" yaml:"solution"`
}

type protoTime struct {
	Seconds int64 `json:"seconds" yaml:"seconds"`
	Nanos   int64 `json:"nanos" yaml:"nanos"`
}

func (r record) problem() (Problem, error) {
	public, err := r.PublicTests.examples("public_tests")
	if err != nil {
		return Problem{}, r.wrap(err)
	}
	private, err := r.PrivateTests.examples("private_tests")
	if err != nil {
		return Problem{}, r.wrap(err)
	}
	generated, err := r.GeneratedTests.examples("generated_tests")
	if err != nil {
		return Problem{}, r.wrap(err)
	}
	if len(r.Solutions.Language) != len(r.Solutions.Solution) {
		return Problem{}, r.wrap(fmt.Errorf("solutions: %d languages for %d sources", len(r.Solutions.Language), len(r.Solutions.Solution)))
	}

	problem := Problem{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		PublicTests:      public,
		PrivateTests:     private,
		GeneratedTests:   generated,
		Solutions:        make([]execution.Solution, len(r.Solutions.Solution)),
		MemoryLimitBytes: r.MemoryLimit,
	}
	if r.TimeLimit != nil {
		problem.TimeLimit = time.Duration(r.TimeLimit.Seconds)*time.Second + time.Duration(r.TimeLimit.Nanos)
	}
	for idx, source := range r.Solutions.Solution {
		lang, _ := LanguageFromCode(r.Solutions.Language[idx])
		problem.Solutions[idx] = execution.Solution{
			ID:       solutionID(r.Name, idx),
			Language: lang,
			Source:   source,
		}
	}
	return problem, nil
}

func (r record) wrap(err error) error {
	return fmt.Errorf("dataset: problem %q: %w", r.Name, err)
}

func (c testColumns) examples(field string) ([]Example, error) {
	if len(c.Input) != len(c.Output) {
		return nil, fmt.Errorf("%s: %d inputs for %d outputs", field, len(c.Input), len(c.Output))
	}
	examples := make([]Example, len(c.Input))
	for idx := range c.Input {
		examples[idx] = Example{Input: c.Input[idx], Output: c.Output[idx]}
	}
	return examples, nil
}
