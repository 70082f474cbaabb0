// Package orchestrator routes one user utterance across the sandboxed
// agent tiers and merges their results into a single reply. The
// orchestrator itself never calls tools; all work is delegated.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"

	"spendwise/internal/agent"
	"spendwise/internal/logging"
	"spendwise/internal/tools"
)

// Metadata summarizes what one turn used.
type Metadata struct {
	AgentsUsed    []string       `json:"agents_used"`
	Tools         map[string]int `json:"tools"`
	ExecutionTime string         `json:"execution_time"`
}

// Response is the chat-facing result of one turn. Handle always
// produces one; failures become fallback messages, never errors.
type Response struct {
	Message  string    `json:"message"`
	Metadata *Metadata `json:"metadata"`
}

const (
	offTopicMessage = "I can help with spending questions, budgets, financial insights, and your stock portfolio. Ask me about one of those."
	failureMessage  = "Sorry, I couldn't complete that request. Please try again."
	timeoutMessage  = "Sorry, that took too long to answer. Please try again."
	degradedSuffix  = "Part of your request could not be completed."
)

// Orchestrator owns the router and the agent tiers.
type Orchestrator struct {
	provider    llm.Provider
	agents      map[string]*agent.Agent
	order       []string
	logger      *logging.Logger
	turnTimeout time.Duration
}

// New creates an orchestrator over the given agents. order fixes the
// routing vocabulary and the sequence used when several tiers run.
func New(provider llm.Provider, agents []*agent.Agent, turnTimeout time.Duration, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.New()
	}
	if turnTimeout <= 0 {
		turnTimeout = 60 * time.Second
	}
	o := &Orchestrator{
		provider:    provider,
		agents:      make(map[string]*agent.Agent, len(agents)),
		logger:      logger.WithComponent("orchestrator"),
		turnTimeout: turnTimeout,
	}
	for _, a := range agents {
		o.agents[a.ID] = a
		o.order = append(o.order, a.ID)
	}
	return o
}

// Handle runs one turn: route, invoke agents sequentially, merge.
func (o *Orchestrator) Handle(ctx context.Context, utterance string) Response {
	turnID := uuid.NewString()
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.turn")
	span.SetAttributes(attribute.String("turn.id", turnID))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	start := time.Now()
	usage := &tools.Usage{}

	o.logger.Info("turn_start", map[string]interface{}{"turn": turnID})

	route, err := o.route(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("route_failed", map[string]interface{}{"turn": turnID, "error": err.Error()})
		return Response{Message: o.fallback(ctx), Metadata: buildMetadata(usage, start)}
	}

	if route.direct != "" {
		span.SetAttributes(attribute.Bool("turn.direct", true))
		return Response{Message: route.direct, Metadata: buildMetadata(usage, start)}
	}
	if len(route.agents) == 0 {
		return Response{Message: offTopicMessage, Metadata: buildMetadata(usage, start)}
	}

	var outputs []string
	failed := 0
	for _, id := range route.agents {
		a := o.agents[id]
		task := utterance
		if len(outputs) > 0 {
			task = fmt.Sprintf("%s\n\nResults so far:\n%s", utterance, strings.Join(outputs, "\n"))
		}

		out, err := a.Run(ctx, task, usage)
		if err != nil {
			failed++
			span.RecordError(err)
			o.logger.Warn("agent_failed", map[string]interface{}{
				"turn":  turnID,
				"agent": id,
				"error": err.Error(),
			})
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				break
			}
			continue
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}

	span.SetAttributes(
		attribute.Int("turn.agents", len(route.agents)),
		attribute.Int("turn.failed", failed),
	)
	o.logger.Info("turn_complete", map[string]interface{}{
		"turn":     turnID,
		"agents":   strings.Join(usage.AgentsUsed(), ","),
		"duration": time.Since(start).String(),
	})

	message := strings.Join(outputs, "\n\n")
	switch {
	case message == "":
		message = o.fallback(ctx)
	case failed > 0:
		message = message + "\n\n" + degradedSuffix
	}
	return Response{Message: message, Metadata: buildMetadata(usage, start)}
}

// fallback distinguishes timeout turns from plain failures.
func (o *Orchestrator) fallback(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutMessage
	}
	return failureMessage
}

func buildMetadata(usage *tools.Usage, start time.Time) *Metadata {
	agents := usage.AgentsUsed()
	if agents == nil {
		agents = []string{}
	}
	return &Metadata{
		AgentsUsed:    agents,
		Tools:         usage.ToolCounts(),
		ExecutionTime: time.Since(start).Round(time.Millisecond).String(),
	}
}
