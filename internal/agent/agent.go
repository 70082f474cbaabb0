// Package agent runs the specialized sub-agents. Each agent is a
// capability manifest, a tool registry scoped to that manifest, and a
// system prompt; nothing else distinguishes the tiers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vinayprograms/agentkit/llm"

	"spendwise/internal/logging"
	"spendwise/internal/manifest"
	"spendwise/internal/tools"
)

// maxIterations caps the tool loop per task. An agent that keeps
// calling tools past this is stuck.
const maxIterations = 8

// Agent is one sandboxed sub-agent.
type Agent struct {
	ID           string
	Description  string
	Manifest     *manifest.Manifest
	Registry     *tools.Registry
	provider     llm.Provider
	instructions string
	logger       *logging.Logger
}

// New creates an agent from its parts.
func New(id, description string, m *manifest.Manifest, reg *tools.Registry, provider llm.Provider, instructions string, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.New()
	}
	return &Agent{
		ID:           id,
		Description:  description,
		Manifest:     m,
		Registry:     reg,
		provider:     provider,
		instructions: instructions,
		logger:       logger.WithComponent("agent." + id),
	}
}

// Run executes one task through the chat loop: the model answers or
// calls tools until it produces a final message. Tool invocations are
// recorded in usage; the agent itself is marked only when it completes,
// so turn metadata never credits an agent that failed mid-task.
func (a *Agent) Run(ctx context.Context, task string, usage *tools.Usage) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: a.instructions},
		{Role: "user", Content: task},
	}

	var toolDefs []llm.ToolDef
	for _, def := range a.Registry.Definitions() {
		toolDefs = append(toolDefs, llm.ToolDef{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}

	for i := 0; i < maxIterations; i++ {
		resp, err := a.provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("agent %s: %w", a.ID, err)
		}

		if len(resp.ToolCalls) == 0 {
			if usage != nil {
				usage.MarkAgent(a.ID)
			}
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, err := a.Registry.Execute(ctx, tc.Name, tc.Args, usage)
			content := formatToolResult(result, err)
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    content,
			})
		}
	}

	return "", fmt.Errorf("agent %s: tool loop exceeded %d iterations", a.ID, maxIterations)
}

// formatToolResult renders a tool outcome for the model. Errors go
// back as text so the agent can adjust instead of aborting the turn.
func formatToolResult(result interface{}, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	data, jerr := json.Marshal(result)
	if jerr != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
