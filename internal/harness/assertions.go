package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AssertionError is returned when an assertion fails.
// It includes the reference run's outcomes to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Outcomes []OutcomeEvent // Reference run for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Outcomes) > 0 {
		fmt.Fprintf(&buf, "\nReference run:\n")
		for _, ev := range e.Outcomes {
			fmt.Fprintf(&buf, "  [%d] batch %d %s/%s %s\n", ev.Seq, ev.Batch, ev.DocID, ev.VersionID, ev.Kind)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertHead:
		return assertHead(result, a)
	case AssertAbsent:
		return assertAbsent(result, a)
	case AssertLinked:
		return assertLinked(result, a, true)
	case AssertUnlinked:
		return assertLinked(result, a, false)
	case AssertOutcome:
		return assertOutcome(result, a)
	case AssertRecordCount:
		return assertRecordCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertHead checks the canonical version of a document and, when the
// assertion lists forks, its exact fork set.
func assertHead(result *Result, a Assertion) error {
	rec, ok := result.record(a.Doc)
	if !ok {
		return &AssertionError{
			Type:     AssertHead,
			Expected: fmt.Sprintf("%s at version %s", a.Doc, a.Version),
			Actual:   "no canonical record",
			Outcomes: result.Outcomes,
		}
	}
	if rec.VersionID != a.Version {
		return &AssertionError{
			Type:     AssertHead,
			Expected: fmt.Sprintf("%s at version %s", a.Doc, a.Version),
			Actual:   fmt.Sprintf("version %s", rec.VersionID),
			Outcomes: result.Outcomes,
		}
	}
	if a.Forks == nil {
		return nil
	}
	want := slices.Sorted(slices.Values(a.Forks))
	if diff := cmp.Diff(want, rec.Forks, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertHead,
			Expected: fmt.Sprintf("%s forks %v", a.Doc, want),
			Actual:   fmt.Sprintf("forks %v (-want +got):\n%s", rec.Forks, diff),
			Outcomes: result.Outcomes,
		}
	}
	return nil
}

func assertAbsent(result *Result, a Assertion) error {
	if rec, ok := result.record(a.Doc); ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no record for %s", a.Doc),
			Actual:   fmt.Sprintf("record at version %s", rec.VersionID),
			Outcomes: result.Outcomes,
		}
	}
	return nil
}

// assertLinked checks that every listed version is (or is not) linked.
func assertLinked(result *Result, a Assertion, want bool) error {
	var wrong []string
	for _, id := range a.Versions {
		_, linked := slices.BinarySearch(result.Linked, id)
		if linked != want {
			wrong = append(wrong, id)
		}
	}
	if len(wrong) == 0 {
		return nil
	}
	expected := "linked"
	if !want {
		expected = "not linked"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%v %s", a.Versions, expected),
		Actual:   fmt.Sprintf("%v differ; linked set is %v", wrong, result.Linked),
		Outcomes: result.Outcomes,
	}
}

// assertOutcome checks what the reference run did with a version. A
// version ingested more than once must match on its first ingestion.
func assertOutcome(result *Result, a Assertion) error {
	for _, ev := range result.Outcomes {
		if ev.VersionID != a.Version {
			continue
		}
		if ev.Kind != a.Kind {
			return &AssertionError{
				Type:     AssertOutcome,
				Expected: fmt.Sprintf("version %s %s", a.Version, a.Kind),
				Actual:   ev.Kind,
				Outcomes: result.Outcomes,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: fmt.Sprintf("version %s %s", a.Version, a.Kind),
		Actual:   "version not ingested",
		Outcomes: result.Outcomes,
	}
}

func assertRecordCount(result *Result, a Assertion) error {
	if len(result.Records) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", len(result.Records)),
			Outcomes: result.Outcomes,
		}
	}
	return nil
}
