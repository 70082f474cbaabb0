package orchestrator

import (
	"fmt"
	"strings"

	"context"

	"github.com/vinayprograms/agentkit/llm"
)

// routeResult is either a direct answer or an ordered agent list.
type routeResult struct {
	direct string
	agents []string
}

// route classifies the utterance. The model may only answer with agent
// ids from the fixed vocabulary, or "direct: <answer>" for greetings
// and other messages no tier should handle. Anything else is treated
// as off-topic.
func (o *Orchestrator) route(ctx context.Context, utterance string) (routeResult, error) {
	var catalog strings.Builder
	for _, id := range o.order {
		fmt.Fprintf(&catalog, "- %s: %s\n", id, o.agents[id].Description)
	}

	system := fmt.Sprintf(`You are the silent router of a personal finance assistant.
Available agents:
%s
Reply with ONLY one of:
- a comma-separated list of agent ids, in execution order
- "direct: <short answer>" for greetings or questions needing no agent
Nothing else. No explanations.`, catalog.String())

	resp, err := o.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: utterance},
		},
	})
	if err != nil {
		return routeResult{}, fmt.Errorf("router: %w", err)
	}

	return o.parseRoute(resp.Content), nil
}

// parseRoute validates the router reply against the agent vocabulary.
// Unknown ids are dropped; an all-unknown reply routes nowhere, which
// Handle turns into the off-topic message.
func (o *Orchestrator) parseRoute(content string) routeResult {
	content = strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(content, "direct:"); ok {
		return routeResult{direct: strings.TrimSpace(rest)}
	}

	var agents []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(content, ",") {
		id := strings.ToLower(strings.TrimSpace(part))
		if _, ok := o.agents[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		agents = append(agents, id)
	}
	return routeResult{agents: agents}
}
