package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Index: 2, Type: AssertCount, Expected: "1 documents in LogbookOperation", Actual: "0"}
	assert.Equal(t, "assertion 2 (count): expected 1 documents in LogbookOperation, got 0", err.Error())
}

func TestAssertions_Failures(t *testing.T) {
	s := &Scenario{
		Name: "failing_assertions",
		IDs:  map[string]string{"OP": "operation", "OTHER": "operation"},
		Steps: []Step{
			{Call: CallCreateOperation, Items: []map[string]string{
				operationItem("${OP}", "PROCESS_SIP_UNITARY"),
				operationItem("${OP}", "STP_1"),
			}},
		},
		Assertions: []Assertion{
			{Type: AssertCount, Collection: "LogbookOperation", Count: 2},
			{Type: AssertExists, Collection: "LogbookOperation", ID: "${OTHER}"},
			{Type: AssertAbsent, Collection: "LogbookOperation", ID: "${OP}"},
			{Type: AssertEvents, Collection: "LogbookOperation", ID: "${OP}", Events: []string{"STP_2"}},
			{Type: AssertHeader, Collection: "LogbookOperation", ID: "${OP}", Field: "evType", Value: "OTHER"},
			{Type: AssertEvents, Collection: "LogbookOperation", ID: "${OTHER}", Events: []string{}},
		},
	}

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Equal(t, "assertion 0 (count): expected 2 documents in LogbookOperation, got 1", result.Errors[0])
	assert.Equal(t, "assertion 1 (exists): expected ${OTHER} exists=true in LogbookOperation, got exists=false", result.Errors[1])
	assert.Equal(t, "assertion 2 (absent): expected ${OP} exists=false in LogbookOperation, got exists=true", result.Errors[2])
	assert.Equal(t, "assertion 3 (events): expected [STP_2], got [STP_1]", result.Errors[3])
	assert.Equal(t, `assertion 4 (header): expected evType="OTHER", got "PROCESS_SIP_UNITARY"`, result.Errors[4])
	assert.Contains(t, result.Errors[5], "assertion 5 (events): expected ${OTHER} in LogbookOperation")
}
