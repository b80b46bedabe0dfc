package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/ir"
)

func testResult() *Result {
	r := NewResult()
	r.Records = []ir.CanonicalRecord{
		ir.NewCanonicalRecord(ir.DocumentVersion{DocID: "A", VersionID: "3"}, []string{"2"}),
		ir.NewCanonicalRecord(ir.DocumentVersion{DocID: "B", VersionID: "b1"}, nil),
	}
	r.Linked = []string{"1", "b0"}
	r.Outcomes = []OutcomeEvent{
		{Seq: 0, DocID: "A", VersionID: "2", Kind: "inserted"},
		{Seq: 1, DocID: "A", VersionID: "3", Kind: "won"},
		{Seq: 2, DocID: "B", VersionID: "b1", Kind: "inserted"},
		{Seq: 3, DocID: "A", VersionID: "3", Kind: "unchanged"},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertHead, Doc: "A", Version: "3", Forks: []string{"2"}},
		{Type: AssertHead, Doc: "B", Version: "b1", Forks: []string{}},
		{Type: AssertHead, Doc: "A", Version: "3"},
		{Type: AssertAbsent, Doc: "C"},
		{Type: AssertLinked, Versions: []string{"1", "b0"}},
		{Type: AssertUnlinked, Versions: []string{"2", "3"}},
		{Type: AssertOutcome, Version: "3", Kind: "won"},
		{Type: AssertRecordCount, Count: 2},
	})
	assert.Empty(t, errs)
}

func TestAssertHead_ForkMismatch(t *testing.T) {
	err := assertHead(testResult(), Assertion{Type: AssertHead, Doc: "A", Version: "3", Forks: []string{"2", "4"}})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "A forks [2 4]", aerr.Expected)
	assert.Contains(t, aerr.Actual, "-want +got")
	assert.Contains(t, err.Error(), "[1] batch 0 A/3 won")
}

func TestAssertHead_Missing(t *testing.T) {
	err := assertHead(testResult(), Assertion{Type: AssertHead, Doc: "Z", Version: "1"})
	assert.ErrorContains(t, err, "no canonical record")
}

func TestAssertLinked_ReportsOffenders(t *testing.T) {
	err := assertLinked(testResult(), Assertion{Type: AssertLinked, Versions: []string{"1", "2", "3"}}, true)
	assert.ErrorContains(t, err, "[2 3] differ")

	err = assertLinked(testResult(), Assertion{Type: AssertUnlinked, Versions: []string{"1"}}, false)
	assert.ErrorContains(t, err, "Expected: [1] not linked")
}

func TestAssertOutcome_FirstIngestion(t *testing.T) {
	r := testResult()
	assert.NoError(t, assertOutcome(r, Assertion{Version: "3", Kind: "won"}))
	assert.ErrorContains(t, assertOutcome(r, Assertion{Version: "3", Kind: "unchanged"}), "Actual: won")
	assert.ErrorContains(t, assertOutcome(r, Assertion{Version: "9", Kind: "won"}), "version not ingested")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}
