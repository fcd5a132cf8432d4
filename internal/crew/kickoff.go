package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/agent/workflowagents/parallelagent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"
)

const budgetNote = "You have used the maximum number of tool calls. Give your final answer now."

func outputKey(i int) string {
	return fmt.Sprintf("task_%d_output", i+1)
}

func agentName(i int, role string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, role)
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return fmt.Sprintf("task_%d", i+1)
	}
	return fmt.Sprintf("task_%d_%s", i+1, slug)
}

// kickoff tracks one Kickoff call. Callbacks of parallel tasks run on
// their own goroutines, so every field below mu is guarded by it.
type kickoff struct {
	crew    *Crew
	byAgent map[string]int
	byKey   map[string]int

	mu        sync.Mutex
	started   []bool
	done      []bool
	toolCalls []int
	outputs   []TaskOutput
}

func newKickoff(c *Crew) *kickoff {
	n := len(c.Tasks)
	return &kickoff{
		crew:      c,
		byAgent:   make(map[string]int, n),
		byKey:     make(map[string]int, n),
		started:   make([]bool, n),
		done:      make([]bool, n),
		toolCalls: make([]int, n),
		outputs:   make([]TaskOutput, n),
	}
}

// build turns the tasks into a sequential agent. A run of consecutive
// async tasks becomes one parallel step.
func (k *kickoff) build(extra []string) (agent.Agent, error) {
	tasks := k.crew.Tasks

	var (
		steps []agent.Agent
		prev  []int
	)
	for i := 0; i < len(tasks); {
		j := i + 1
		if tasks[i].AsyncExecution {
			for j < len(tasks) && tasks[j].AsyncExecution {
				j++
			}
		}

		group := make([]agent.Agent, 0, j-i)
		for n := i; n < j; n++ {
			a, err := k.taskAgent(n, k.instruction(n, extra, prev, i))
			if err != nil {
				return nil, err
			}
			group = append(group, a)
		}

		if len(group) == 1 {
			steps = append(steps, group[0])
		} else {
			p, err := parallelagent.New(parallelagent.Config{
				AgentConfig: agent.Config{
					Name:        fmt.Sprintf("tasks_%d_to_%d", i+1, j),
					Description: "Runs async tasks side by side.",
					SubAgents:   group,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("build async tasks %d-%d: %w", i+1, j, err)
			}
			steps = append(steps, p)
		}

		prev = prev[:0:0]
		for n := i; n < j; n++ {
			prev = append(prev, n)
		}
		i = j
	}

	root, err := sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        "crew",
			Description: "Runs the crew's tasks in order.",
			SubAgents:   steps,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build crew: %w", err)
	}
	return root, nil
}

// instruction renders task i. Earlier outputs are referenced as state
// placeholders and filled in by the agent when it runs. stepStart is the
// index of the first task in i's step; everything before it has finished.
func (k *kickoff) instruction(i int, extra []string, prev []int, stepStart int) string {
	task := k.crew.Tasks[i]

	var b strings.Builder
	b.WriteString(task.Agent.persona())
	b.WriteString("\nCurrent Task: " + task.Description)
	b.WriteString("\n\nThis is the expected criteria for your final answer: " + task.ExpectedOutput)
	b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.\n")

	if i == 0 && len(extra) > 0 {
		b.WriteString("\nInputs:\n")
		for _, key := range extra {
			fmt.Fprintf(&b, "\n[%s]\n{%s}\n", key, key)
		}
	}

	if len(prev) > 0 {
		b.WriteString("\nThis is the context you're working with:\n")
		for _, j := range prev {
			fmt.Fprintf(&b, "\n[%s]\n{%s}\n", k.crew.Tasks[j].Agent.Role, outputKey(j))
		}
	}

	if task.Agent.Memory {
		var mem []int
		for j := 0; j < stepStart; j++ {
			if !containsIndex(prev, j) {
				mem = append(mem, j)
			}
		}
		if len(mem) > 0 {
			b.WriteString("\nEarlier results from this crew:\n")
			for _, j := range mem {
				fmt.Fprintf(&b, "\n[%s]\n{%s}\n", k.crew.Tasks[j].Agent.Role, outputKey(j))
			}
		}
	}

	return b.String()
}

func containsIndex(list []int, i int) bool {
	for _, x := range list {
		if x == i {
			return true
		}
	}
	return false
}

func (k *kickoff) taskAgent(i int, instruction string) (agent.Agent, error) {
	task := k.crew.Tasks[i]
	m := task.Agent.Model
	if m == nil {
		m = k.crew.Model
	}

	var tools []tool.Tool
	for _, t := range task.tools() {
		ft, err := functionTool(t)
		if err != nil {
			return nil, fmt.Errorf("task %d: tool %s: %w", i+1, t.Name(), err)
		}
		tools = append(tools, ft)
	}

	name := agentName(i, task.Agent.Role)
	k.byAgent[name] = i
	k.byKey[outputKey(i)] = i

	a, err := llmagent.New(llmagent.Config{
		Name:                     name,
		Description:              task.Agent.Goal,
		Model:                    newModelAdapter(m),
		Instruction:              instruction,
		Tools:                    tools,
		OutputKey:                outputKey(i),
		IncludeContents:          llmagent.IncludeContentsNone,
		DisallowTransferToParent: true,
		DisallowTransferToPeers:  true,
		BeforeAgentCallbacks:     []agent.BeforeAgentCallback{k.beforeAgent(i)},
		BeforeModelCallbacks:     []llmagent.BeforeModelCallback{k.beforeModel(i)},
		BeforeToolCallbacks:      []llmagent.BeforeToolCallback{k.beforeTool(i)},
	})
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", i+1, err)
	}
	return a, nil
}

func (k *kickoff) beforeAgent(i int) agent.BeforeAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		k.mu.Lock()
		k.started[i] = true
		k.mu.Unlock()

		task := k.crew.Tasks[i]
		k.crew.emit(Event{Type: EventTaskStarted, TaskIndex: i, Agent: task.Agent.Role})
		k.log(ctx, i, "task started", "tools", len(task.tools()))
		return nil, nil
	}
}

// beforeModel withdraws the tools once the task has spent its tool budget.
func (k *kickoff) beforeModel(i int) llmagent.BeforeModelCallback {
	return func(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
		task := k.crew.Tasks[i]
		if len(task.tools()) == 0 || k.toolCount(i) < task.Agent.maxIter() {
			return nil, nil
		}
		if req.Config != nil {
			req.Config.Tools = nil
		}
		req.Contents = append(req.Contents, genai.NewContentFromText(budgetNote, genai.RoleUser))
		return nil, nil
	}
}

// beforeTool counts tool calls. Calls past the budget are answered with a
// note instead of running the tool.
func (k *kickoff) beforeTool(i int) llmagent.BeforeToolCallback {
	return func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		task := k.crew.Tasks[i]

		k.mu.Lock()
		if k.toolCalls[i] >= task.Agent.maxIter() {
			k.mu.Unlock()
			return map[string]any{"result": budgetNote}, nil
		}
		k.toolCalls[i]++
		k.mu.Unlock()

		k.crew.emit(Event{Type: EventToolUsed, TaskIndex: i, Agent: task.Agent.Role, Tool: t.Name()})
		k.log(ctx, i, "tool used", "tool", t.Name())
		return nil, nil
	}
}

func (k *kickoff) toolCount(i int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.toolCalls[i]
}

func (k *kickoff) log(ctx context.Context, i int, msg string, args ...any) {
	a := k.crew.Tasks[i].Agent
	level := slog.LevelDebug
	if a.Verbose {
		level = slog.LevelInfo
	}
	k.crew.logger().Log(ctx, level, msg, append([]any{"task", i + 1, "agent", a.Role}, args...)...)
}

// observe handles one runner event. A task is complete when its output key
// shows up in the event's state delta. It returns the failing task index
// with any error.
func (k *kickoff) observe(ctx context.Context, ev *session.Event) (int, error) {
	if i, ok := k.byAgent[ev.Author]; ok && ev.Content != nil && ev.Content.Role == roleModel {
		calls := 0
		for _, p := range ev.Content.Parts {
			if p != nil && p.FunctionCall != nil {
				calls++
			}
		}
		k.log(ctx, i, "model response", "chars", len(contentText(ev.Content)), "tool_calls", calls)
	}

	for key, v := range ev.Actions.StateDelta {
		i, ok := k.byKey[key]
		if !ok {
			continue
		}
		if err := k.complete(ctx, i, fmt.Sprint(v)); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func (k *kickoff) complete(ctx context.Context, i int, raw string) error {
	task := k.crew.Tasks[i]
	raw = strings.TrimSpace(raw)

	out := TaskOutput{
		Description: task.Description,
		Agent:       task.Agent.Role,
		Raw:         raw,
		ToolCalls:   k.toolCount(i),
	}
	if task.OutputFile != "" {
		if err := writeOutputFile(task.OutputFile, raw); err != nil {
			return err
		}
		out.OutputFile = task.OutputFile
	}

	k.mu.Lock()
	k.outputs[i] = out
	k.done[i] = true
	k.mu.Unlock()

	k.crew.emit(Event{Type: EventTaskCompleted, TaskIndex: i, Agent: task.Agent.Role, Output: raw})
	k.log(ctx, i, "task completed", "tool_calls", out.ToolCalls)
	return nil
}

// missing reports the first task that produced no output.
func (k *kickoff) missing() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, ok := range k.done {
		if !ok {
			return i, errors.New("finished without an output")
		}
	}
	return -1, nil
}

// fail attributes err to task i, or, when i is negative, to the first task
// that started but did not finish.
func (k *kickoff) fail(i int, err error) error {
	if i < 0 {
		i = k.failing()
	}
	role := k.crew.Tasks[i].Agent.Role
	err = fmt.Errorf("task %d (%s): %w", i+1, role, err)
	k.crew.emit(Event{Type: EventTaskFailed, TaskIndex: i, Agent: role, Err: err})
	return err
}

func (k *kickoff) failing() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.done {
		if k.started[i] && !k.done[i] {
			return i
		}
	}
	for i := range k.done {
		if !k.done[i] {
			return i
		}
	}
	return len(k.done) - 1
}
