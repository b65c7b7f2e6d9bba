package llm

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Prompt builders. Each LLM-backed feature gets a system prompt describing
// the JSON contract and a user prompt assembled from workspace data. The
// contracts mirror the types in schema.go; keep them in sync.

const assistantSystemPrompt = `You are an automation consultant helping a team map their business processes and find automation opportunities.
Respond with a single JSON object:
{
  "reply": "your message to the user (markdown allowed)",
  "new_process_name": "only when the user asks to start mapping a new process",
  "workflow_delta": {
    "new_steps": [{"temp_id": "s1", "name": "...", "description": "...", "owner": "...", "inputs": ["..."], "outputs": ["..."], "frequency": "...", "duration_minutes": 30}],
    "updated_steps": [{"id": "<existing step id>", "name": "..."}],
    "new_links": [{"from_step": "s1 or existing id", "to_step": "s2 or existing id", "label": "...", "link_type": "..."}]
  },
  "new_opportunities": [{"title": "...", "summary": "...", "step_id": "<existing step id or omit>", "impact": 1-5, "feasibility": 1-5, "effort": 1-5}],
  "link_artifacts": [{"type": "process|opportunity|blueprint|ai_use_case", "id": "..."}]
}
Omit workflow_delta, new_opportunities and link_artifacts when the turn changes nothing. Use temp_ids for steps created in this turn and real ids for existing steps. Only reply is required.`

// AssistantPrompts builds the chat orchestration prompts. graph may be nil
// when the session has no active process yet.
func AssistantPrompts(graph *models.ProcessGraph, message string) (system, user string) {
	var b strings.Builder
	if graph != nil {
		b.WriteString("Current process:\n")
		b.WriteString(describeGraph(graph))
		b.WriteString("\n")
	} else {
		b.WriteString("No process is linked to this session yet.\n\n")
	}
	b.WriteString("User message:\n")
	b.WriteString(message)

	return assistantSystemPrompt, b.String()
}

// History converts a session transcript into chat messages for the provider
func History(messages []models.SessionMessage) []openai.ChatCompletionMessage {
	history := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == models.MessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		history = append(history, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return history
}

const scanSystemPrompt = `You are an automation consultant. Analyse the process below and identify concrete automation opportunities.
Respond with a single JSON object:
{"opportunities": [{"title": "...", "summary": "...", "step_id": "<step id or omit>", "impact": 1-5, "feasibility": 1-5, "effort": 1-5}]}
Scores: impact and feasibility high is good, effort high is bad. Reference step ids from the process when an opportunity targets one step.`

// ScanPrompts builds the opportunity-scan prompts for a process graph
func ScanPrompts(graph *models.ProcessGraph) (system, user string) {
	return scanSystemPrompt, describeGraph(graph)
}

const blueprintSystemPrompt = `You are an automation consultant writing an implementation blueprint.
Respond with a single JSON object:
{"title": "...", "summary": "one paragraph", "sections": [{"heading": "...", "body": "markdown"}]}
Cover the current state, the proposed automations in priority order, and a rollout plan.`

// BlueprintPrompts builds the blueprint draft prompts from the workspace's
// processes and their opportunities
func BlueprintPrompts(graphs []models.ProcessGraph, opportunities map[string][]models.Opportunity) (system, user string) {
	var b strings.Builder
	for i := range graphs {
		graph := &graphs[i]
		b.WriteString(describeGraph(graph))
		for _, opp := range opportunities[graph.ID.String()] {
			summary := ""
			if opp.Summary != nil {
				summary = *opp.Summary
			}
			fmt.Fprintf(&b, "Opportunity: %s (impact %d, feasibility %d, effort %d) %s\n",
				opp.Title, opp.Impact, opp.Feasibility, opp.Effort, summary)
		}
		b.WriteString("\n")
	}
	return blueprintSystemPrompt, b.String()
}

const riskSystemPrompt = `You are an AI governance analyst drafting a risk assessment for an AI use case.
Respond with a single JSON object:
{"risk_level": "low|medium|high|critical", "summary": "one paragraph", "hazards": [{"title": "...", "severity": "low|medium|high|critical", "likelihood": "rare|possible|likely", "mitigation": "..."}]}`

// RiskPrompts builds the risk-assessment draft prompts for a use case
func RiskPrompts(useCase *models.AiUseCase) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Use case: %s\n", useCase.Name)
	if useCase.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *useCase.Description)
	}
	fmt.Fprintf(&b, "Status: %s\n", useCase.Status)
	if tools := useCase.Tools.Data; len(tools) > 0 {
		fmt.Fprintf(&b, "Tools: %s\n", strings.Join(tools, ", "))
	}
	return riskSystemPrompt, b.String()
}

const policySystemPrompt = `You are an AI governance analyst drafting a workspace AI policy.
Respond with a single JSON object:
{"title": "...", "body": "the full policy in markdown"}
Ground the policy in the use cases listed; keep it practical, not legal boilerplate.`

// PolicyPrompts builds the policy suggestion prompts from the workspace's
// use case inventory
func PolicyPrompts(useCases []models.AiUseCase) (system, user string) {
	var b strings.Builder
	b.WriteString("AI use cases in this workspace:\n")
	for _, uc := range useCases {
		desc := ""
		if uc.Description != nil {
			desc = *uc.Description
		}
		fmt.Fprintf(&b, "- %s (%s) %s\n", uc.Name, uc.Status, desc)
	}
	return policySystemPrompt, b.String()
}

// describeGraph renders a process graph as plain text for prompt context
func describeGraph(graph *models.ProcessGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Process %q (id %s)\n", graph.Name, graph.ID)
	if graph.Process.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *graph.Process.Description)
	}

	names := make(map[string]string, len(graph.Steps))
	for _, step := range graph.Steps {
		names[step.ID.String()] = step.Name
		fmt.Fprintf(&b, "Step %s: %s", step.ID, step.Name)
		if step.Owner != nil {
			fmt.Fprintf(&b, " (owner: %s)", *step.Owner)
		}
		if step.DurationMinutes != nil {
			fmt.Fprintf(&b, " (%d min)", *step.DurationMinutes)
		}
		b.WriteString("\n")
		if inputs := step.Inputs.Data; len(inputs) > 0 {
			fmt.Fprintf(&b, "  inputs: %s\n", strings.Join(inputs, ", "))
		}
		if outputs := step.Outputs.Data; len(outputs) > 0 {
			fmt.Fprintf(&b, "  outputs: %s\n", strings.Join(outputs, ", "))
		}
	}

	for _, link := range graph.Links {
		fmt.Fprintf(&b, "Link: %s -> %s", names[link.FromStepID.String()], names[link.ToStepID.String()])
		if link.Label != nil {
			fmt.Fprintf(&b, " (%s)", *link.Label)
		}
		b.WriteString("\n")
	}

	return b.String()
}
