package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledger/internal/ledger"
)

// Scenario is a sequence of ledger calls and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tenant scopes every call.
	Tenant int `yaml:"tenant"`

	// IDs declares symbolic ids and their object type
	// (operation, unit, objectgroup, event).
	IDs map[string]string `yaml:"ids"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one ledger call.
type Step struct {
	// Call names the engine operation (see the package documentation).
	Call string `yaml:"call"`

	// Kind is unit, objectgroup or operation.
	Kind string `yaml:"kind,omitempty"`

	// Operation is the calling operation id for lifecycle calls.
	Operation string `yaml:"operation,omitempty"`

	// Object is the target lifecycle id.
	Object string `yaml:"object,omitempty"`

	// Staging selects the staging collection for rollbackLifecycle.
	Staging bool `yaml:"staging,omitempty"`

	// Collection names the collection for purge.
	Collection string `yaml:"collection,omitempty"`

	// Items are wire-named events.
	Items []map[string]string `yaml:"items,omitempty"`

	// Expect is the expected error code. Empty means success.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	// Type is count, exists, absent, events or header.
	Type string `yaml:"type"`

	// Collection is a collection name such as LogbookLifeCycleUnit.
	Collection string `yaml:"collection"`

	// ID targets one document (exists, absent, events, header).
	ID string `yaml:"id,omitempty"`

	// Count is the expected document count (count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected evType sequence (events).
	Events []string `yaml:"events,omitempty"`

	// Field and Value are the expected header field (header).
	Field string `yaml:"field,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertCount  = "count"
	AssertExists = "exists"
	AssertAbsent = "absent"
	AssertEvents = "events"
	AssertHeader = "header"
)

// Step call constants.
const (
	CallCreateOperation          = "createOperation"
	CallUpdateOperation          = "updateOperation"
	CallCreateLifecycle          = "createLifecycle"
	CallUpdateLifecycle          = "updateLifecycle"
	CallUpdateCommittedLifecycle = "updateCommittedLifecycle"
	CallPromoteLifecycle         = "promoteLifecycle"
	CallCommitLifecycle          = "commitLifecycle"
	CallFinalizeStaging          = "finalizeStaging"
	CallRollbackLifecycle        = "rollbackLifecycle"
	CallRollbackAll              = "rollbackAll"
	CallPurge                    = "purge"
)

var symbolRef = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

var idTypes = map[string]bool{"operation": true, "unit": true, "objectgroup": true, "event": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	for _, name := range sortedSymbols(s.IDs) {
		if !idTypes[s.IDs[name]] {
			return fmt.Errorf("ids.%s: unknown id type %q", name, s.IDs[name])
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step, s.IDs); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.IDs); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, ids map[string]string) error {
	needsKind := true
	switch step.Call {
	case CallCreateOperation, CallUpdateOperation:
		needsKind = false
		if len(step.Items) == 0 {
			return fmt.Errorf("steps[%d]: %s needs items", index, step.Call)
		}
	case CallCreateLifecycle, CallUpdateLifecycle, CallUpdateCommittedLifecycle:
		if step.Operation == "" || len(step.Items) == 0 {
			return fmt.Errorf("steps[%d]: %s needs operation and items", index, step.Call)
		}
	case CallPromoteLifecycle, CallCommitLifecycle, CallFinalizeStaging:
		if step.Object == "" {
			return fmt.Errorf("steps[%d]: %s needs object", index, step.Call)
		}
	case CallRollbackLifecycle:
		if step.Operation == "" || step.Object == "" {
			return fmt.Errorf("steps[%d]: %s needs operation and object", index, step.Call)
		}
	case CallRollbackAll:
		if step.Operation == "" {
			return fmt.Errorf("steps[%d]: %s needs operation", index, step.Call)
		}
	case CallPurge:
		needsKind = false
		if _, err := ledger.ParseCollection(step.Collection); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case "":
		return fmt.Errorf("steps[%d]: call is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown call %q", index, step.Call)
	}
	if needsKind {
		if _, err := ledger.ParseKind(step.Kind); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	refs := []string{step.Operation, step.Object}
	for _, item := range step.Items {
		for _, v := range item {
			refs = append(refs, v)
		}
	}
	if err := checkRefs(refs, ids); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

func validateAssertion(index int, a Assertion, ids map[string]string) error {
	if _, err := ledger.ParseCollection(a.Collection); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	switch a.Type {
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertExists, AssertAbsent, AssertEvents, AssertHeader:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
		if a.Type == AssertHeader && a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for header", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if err := checkRefs([]string{a.ID, a.Value}, ids); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	return nil
}

func checkRefs(values []string, ids map[string]string) error {
	for _, v := range values {
		for _, m := range symbolRef.FindAllStringSubmatch(v, -1) {
			if _, ok := ids[m[1]]; !ok {
				return fmt.Errorf("undeclared id ${%s}", m[1])
			}
		}
	}
	return nil
}

func sortedSymbols(ids map[string]string) []string {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
