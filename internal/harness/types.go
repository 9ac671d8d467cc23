package harness

// StepTrace records one executed step.
type StepTrace struct {
	Step    int    `json:"step"`
	Call    string `json:"call"`
	Object  string `json:"object,omitempty"`
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step had its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State holds every document of the scenario tenant by collection
	// name, read with the full projection.
	State map[string][]map[string]any `json:"state,omitempty"`

	// IDs maps each declared symbol to its generated id.
	IDs map[string]string `json:"ids"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
		State:  make(map[string][]map[string]any),
		IDs:    make(map[string]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace records a step.
func (r *Result) AddTrace(step int, call, object, outcome string) {
	r.Trace = append(r.Trace, StepTrace{Step: step, Call: call, Object: object, Outcome: outcome})
}
