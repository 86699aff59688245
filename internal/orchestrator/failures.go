package orchestrator

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
)

// LookupFailure is one lookup that ended in its failure variant.
type LookupFailure struct {
	Kind types.LookupKind
	Err  error
}

func (f LookupFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f LookupFailure) Unwrap() error {
	return f.Err
}

// FailureAggregator collects lookup failures of one run. A run is
// sequential, so it is not safe for concurrent use.
type FailureAggregator struct {
	failures []LookupFailure
}

func NewFailureAggregator() *FailureAggregator {
	return &FailureAggregator{}
}

// Add records a failure; nil errors are ignored.
func (fa *FailureAggregator) Add(kind types.LookupKind, err error) {
	if err == nil {
		return
	}
	fa.failures = append(fa.failures, LookupFailure{Kind: kind, Err: err})
}

func (fa *FailureAggregator) HasFailures() bool {
	return len(fa.failures) > 0
}

// Kinds lists the failed lookup kinds in the order they failed.
func (fa *FailureAggregator) Kinds() []string {
	kinds := make([]string, len(fa.failures))
	for i, f := range fa.failures {
		kinds[i] = string(f.Kind)
	}
	return kinds
}

// Error combines all failures into one message
func (fa *FailureAggregator) Error() string {
	switch len(fa.failures) {
	case 0:
		return ""
	case 1:
		return fa.failures[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d lookups failed:\n", len(fa.failures)))
	for i, f := range fa.failures {
		sb.WriteString(fmt.Sprintf("  %d. %v\n", i+1, f))
	}
	return sb.String()
}

// Summary returns a one-line outcome of a run with totalLookups attempts.
func (fa *FailureAggregator) Summary(totalLookups int) string {
	if len(fa.failures) == 0 {
		return fmt.Sprintf("All %d lookups succeeded", totalLookups)
	}
	return fmt.Sprintf("%d/%d lookups failed", len(fa.failures), totalLookups)
}
