package crew

import (
	"context"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// Tool is something an agent can call while working on a task. Tools take
// free-text input; the model passes it as the "input" argument.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) (string, error)
}

type toolArgs struct {
	Input string `json:"input,omitempty" jsonschema:"Input for the tool as free text. May be empty."`
}

type toolResult struct {
	Result string `json:"result"`
}

// functionTool exposes t as an ADK function tool. A failing tool answers
// with "Error: ..." so the model can react instead of the task failing.
func functionTool(t Tool) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        t.Name(),
		Description: t.Description(),
	}, func(ctx tool.Context, args toolArgs) (toolResult, error) {
		out, err := t.Run(ctx, args.Input)
		if err != nil {
			return toolResult{Result: "Error: " + err.Error()}, nil
		}
		return toolResult{Result: out}, nil
	})
}
