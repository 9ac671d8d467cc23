package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ledger/internal/canon"
)

// Snapshot renders a result as indented canonical JSON. Generated ids are
// written back as their ${NAME} symbol so the output does not depend on
// the id generator.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, st := range result.Trace {
		entry := map[string]any{
			"step":    st.Step,
			"call":    st.Call,
			"outcome": st.Outcome,
		}
		if st.Object != "" {
			entry["object"] = st.Object
		}
		trace[i] = entry
	}
	state := make(map[string]any, len(result.State))
	for name, docs := range result.State {
		state[name] = docs
	}

	compact, err := canon.Marshal(map[string]any{
		"scenario_name": scenarioName,
		"trace":         trace,
		"state":         state,
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return []byte(symbolize(result.IDs, buf.String())), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
