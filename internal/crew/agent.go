// Package crew runs a pipeline of role-labelled agents on top of the Agent
// Development Kit.
//
// An Agent is static configuration (role, goal, backstory, tools). A Task
// assigns work to an agent. A Crew turns every task into an LLM agent and
// runs them in declared order inside a sequential workflow agent, so each
// task reads the outputs of the ones before it from session state.
// Consecutive async tasks run side by side in a parallel workflow agent.
// Reasoning and tool selection are left to the language model.
package crew

import (
	"strings"

	"github.com/JonMunkholm/datacrew/internal/llm"
)

// DefaultMaxIter bounds how many tools a single task may call.
const DefaultMaxIter = 5

// Agent is a role/goal/backstory configuration.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Tools     []Tool

	// Memory lets the agent see every earlier output of the kickoff, not
	// only the previous step it gets as context.
	Memory bool

	// Verbose logs each step at info level instead of debug.
	Verbose bool

	// MaxIter caps tool calls per task; 0 means DefaultMaxIter. Once it is
	// reached the tools are withdrawn and one more model call produces the
	// final answer.
	MaxIter int

	// Model overrides the crew's model for this agent.
	Model llm.Model
}

func (a *Agent) maxIter() int {
	if a.MaxIter > 0 {
		return a.MaxIter
	}
	return DefaultMaxIter
}

func (a *Agent) persona() string {
	var b strings.Builder
	b.WriteString("You are " + a.Role + ".\n")
	if a.Backstory != "" {
		b.WriteString(a.Backstory + "\n")
	}
	if a.Goal != "" {
		b.WriteString("\nYour personal goal is: " + a.Goal + "\n")
	}
	return b.String()
}
