package crew

// Task is a unit of work assigned to an agent.
type Task struct {
	Description    string
	ExpectedOutput string
	Agent          *Agent

	// Tools, when set, replace the agent's tools for this task.
	Tools []Tool

	// AsyncExecution lets the task run alongside the async tasks next to
	// it. The next synchronous task waits for all of them.
	AsyncExecution bool

	// OutputFile receives the raw task output after completion.
	OutputFile string
}

func (t *Task) tools() []Tool {
	if len(t.Tools) > 0 {
		return t.Tools
	}
	return t.Agent.Tools
}

// TaskOutput is the result of one task.
type TaskOutput struct {
	Description string `json:"description"`
	Agent       string `json:"agent"`
	Raw         string `json:"raw"`
	OutputFile  string `json:"output_file,omitempty"`
	ToolCalls   int    `json:"tool_calls"`
}
