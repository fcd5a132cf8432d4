package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/JonMunkholm/datacrew/internal/llm"
)

// Process selects how tasks are scheduled.
type Process string

const (
	ProcessSequential   Process = "sequential"
	ProcessHierarchical Process = "hierarchical"
)

var (
	// ErrUnsupportedProcess is returned for any process except sequential.
	ErrUnsupportedProcess = errors.New("unsupported crew process: only sequential is available")

	// ErrNoTasks is returned when a crew is built without tasks.
	ErrNoTasks = errors.New("crew has no tasks")

	// ErrNoModel is returned when neither the crew nor an agent has a model.
	ErrNoModel = errors.New("crew has no language model")

	// ErrInvalidInput is returned when a kickoff input key is not an
	// identifier or a task references a placeholder no input provides.
	ErrInvalidInput = errors.New("invalid crew input")
)

const (
	appName        = "datacrew"
	sessionUser    = "crew"
	kickoffMessage = "Work on your current task."
)

var (
	inputKeyRE    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Inputs are kickoff values interpolated into task descriptions as {key}.
// Keys must be identifiers. Values with a Summary() string method (such as
// a dataset excerpt) are rendered through it; anything else is formatted
// with %v.
type Inputs map[string]any

type summarizer interface {
	Summary() string
}

func renderInput(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case summarizer:
		return x.Summary()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// CrewOutput is the result of a kickoff.
type CrewOutput struct {
	Raw   string       `json:"raw"` // output of the last task
	Tasks []TaskOutput `json:"tasks"`
	Usage llm.Usage    `json:"usage"`
}

// String returns the final output.
func (o *CrewOutput) String() string {
	return o.Raw
}

// Crew sequences tasks across agents.
type Crew struct {
	Agents  []*Agent
	Tasks   []*Task
	Process Process
	Model   llm.Model

	// Listener, if set, receives progress events. Async tasks call it
	// from their own goroutines.
	Listener Listener

	Logger *slog.Logger
}

// New validates the configuration and returns a crew.
func New(model llm.Model, agents []*Agent, tasks []*Task, process Process) (*Crew, error) {
	if process == "" {
		process = ProcessSequential
	}
	if process != ProcessSequential {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProcess, process)
	}
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	known := make(map[*Agent]bool, len(agents))
	for _, a := range agents {
		known[a] = true
	}
	for i, t := range tasks {
		if t.Agent == nil {
			return nil, fmt.Errorf("task %d has no agent", i+1)
		}
		if !known[t.Agent] {
			return nil, fmt.Errorf("task %d: agent %q is not part of the crew", i+1, t.Agent.Role)
		}
		if model == nil && t.Agent.Model == nil {
			return nil, fmt.Errorf("task %d: %w", i+1, ErrNoModel)
		}
	}

	return &Crew{
		Agents:  agents,
		Tasks:   tasks,
		Process: process,
		Model:   model,
		Logger:  slog.Default(),
	}, nil
}

// Kickoff runs every task and returns the combined output.
//
// Inputs are stored in session state and injected wherever a task says
// {key}. Each task receives the output of the previous step as context:
// the last synchronous task, or every task of the async group before it.
// Agents with Memory also see every earlier output of this kickoff.
func (c *Crew) Kickoff(ctx context.Context, inputs Inputs) (*CrewOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := make(map[string]any, len(inputs))
	for k, v := range inputs {
		if !inputKeyRE.MatchString(k) || strings.HasPrefix(k, "task_") {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidInput, k)
		}
		state[k] = renderInput(v)
	}
	if err := c.checkPlaceholders(state); err != nil {
		return nil, err
	}

	k := newKickoff(c)
	root, err := k.build(c.unreferencedInputs(state))
	if err != nil {
		return nil, err
	}

	sessions := session.InMemoryService()
	sessionID := uuid.NewString()
	if _, err := sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    sessionUser,
		SessionID: sessionID,
		State:     state,
	}); err != nil {
		return nil, fmt.Errorf("create crew session: %w", err)
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          root,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("create crew runner: %w", err)
	}

	var (
		out    = &CrewOutput{}
		failed = -1
		runErr error
	)
	msg := genai.NewContentFromText(kickoffMessage, genai.RoleUser)
	for ev, err := range r.Run(ctx, sessionUser, sessionID, msg, agent.RunConfig{}) {
		if err != nil {
			runErr = err
			break
		}
		if ev == nil {
			continue
		}
		out.Usage.Add(fromUsageMetadata(ev.UsageMetadata))
		if failed, runErr = k.observe(ctx, ev); runErr != nil {
			break
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr == nil {
		failed, runErr = k.missing()
	}
	if runErr != nil {
		return nil, k.fail(failed, runErr)
	}

	out.Tasks = k.outputs
	out.Raw = k.outputs[len(k.outputs)-1].Raw
	return out, nil
}

// checkPlaceholders rejects {key} references no input provides, before any
// model is called.
func (c *Crew) checkPlaceholders(state map[string]any) error {
	for i, t := range c.Tasks {
		a := t.Agent
		for _, text := range []string{a.Role, a.Goal, a.Backstory, t.Description, t.ExpectedOutput} {
			for _, m := range placeholderRE.FindAllStringSubmatch(text, -1) {
				if _, ok := state[m[1]]; !ok {
					return fmt.Errorf("%w: task %d references {%s}, which is not an input", ErrInvalidInput, i+1, m[1])
				}
			}
		}
	}
	return nil
}

// unreferencedInputs returns inputs no task mentions as {key}. They are
// handed to the first task so values are never silently dropped.
func (c *Crew) unreferencedInputs(state map[string]any) []string {
	var keys []string
	for k := range state {
		placeholder := "{" + k + "}"
		used := false
		for _, t := range c.Tasks {
			if strings.Contains(t.Description, placeholder) || strings.Contains(t.ExpectedOutput, placeholder) {
				used = true
				break
			}
		}
		if !used {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (c *Crew) emit(e Event) {
	if c.Listener == nil {
		return
	}
	e.TaskCount = len(c.Tasks)
	e.Time = time.Now()
	c.Listener(e)
}

func (c *Crew) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func writeOutputFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
