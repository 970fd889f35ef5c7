// Package mcptools exposes the workflow coordinator as MCP tools so an
// operator-side LLM can inspect sessions, read the master context, and
// put questions to individual agents.
package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/caldermed/psurd/internal/workflow"
)

// WorkflowService holds the coordinator used by MCP tool handlers.
type WorkflowService struct {
	coord *workflow.Coordinator
}

// NewWorkflowService creates a WorkflowService over the given coordinator.
func NewWorkflowService(coord *workflow.Coordinator) *WorkflowService {
	return &WorkflowService{coord: coord}
}

// GetWorkflowStateInput selects the session to inspect. With an empty
// SessionID every session is summarized.
type GetWorkflowStateInput struct {
	SessionID string `json:"sessionId,omitempty" jsonschema:"session to inspect; omit to list all sessions"`
}

// SessionSummary is the compact per-session view returned to the model.
type SessionSummary struct {
	SessionID string            `json:"sessionId"`
	Status    string            `json:"status"`
	Sections  map[string]string `json:"sections,omitempty"`
	Attempts  map[string]int    `json:"attempts,omitempty"`
}

// GetWorkflowStateOutput lists the matching sessions.
type GetWorkflowStateOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

// GetWorkflowState reports session status and per-section task states.
func (s *WorkflowService) GetWorkflowState(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetWorkflowStateInput,
) (*mcp.CallToolResult, GetWorkflowStateOutput, error) {
	var sessions []*workflow.Session
	if input.SessionID != "" {
		st, err := s.coord.GetState(input.SessionID)
		if err != nil {
			return nil, GetWorkflowStateOutput{}, err
		}
		sessions = []*workflow.Session{st.Session}
	} else {
		sessions = s.coord.Sessions()
	}

	out := GetWorkflowStateOutput{}
	for _, sess := range sessions {
		summary := SessionSummary{
			SessionID: sess.ID,
			Status:    string(sess.Status),
		}
		if len(sess.Tasks) > 0 {
			summary.Sections = make(map[string]string, len(sess.Tasks))
			summary.Attempts = make(map[string]int, len(sess.Tasks))
			for id, task := range sess.Tasks {
				summary.Sections[id] = string(task.State)
				summary.Attempts[id] = task.Attempts
			}
		}
		out.Sessions = append(out.Sessions, summary)
	}
	return nil, out, nil
}

// GetMasterContextInput selects the session whose master context to read.
type GetMasterContextInput struct {
	SessionID string `json:"sessionId" jsonschema:"session whose master context to read"`
}

// ContextFact is one master-context entry with its provenance.
type ContextFact struct {
	Key        string `json:"key"`
	Value      any    `json:"value"`
	Provenance string `json:"provenance"`
	Frozen     bool   `json:"frozen"`
	UpdatedBy  string `json:"updatedBy,omitempty"`
}

// GetMasterContextOutput lists the session's facts.
type GetMasterContextOutput struct {
	Facts []ContextFact `json:"facts"`
}

// GetMasterContext returns the full master-context snapshot, including
// which keys are golden.
func (s *WorkflowService) GetMasterContext(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetMasterContextInput,
) (*mcp.CallToolResult, GetMasterContextOutput, error) {
	if input.SessionID == "" {
		return nil, GetMasterContextOutput{}, fmt.Errorf("sessionId is required")
	}
	st, err := s.coord.GetState(input.SessionID)
	if err != nil {
		return nil, GetMasterContextOutput{}, err
	}

	out := GetMasterContextOutput{}
	for key, fact := range st.MasterContext {
		out.Facts = append(out.Facts, ContextFact{
			Key:        key,
			Value:      fact.Value,
			Provenance: string(fact.Provenance),
			Frozen:     fact.Frozen,
			UpdatedBy:  fact.UpdatedBy,
		})
	}
	return nil, out, nil
}

// AskAgentInput routes a question to one agent in a running session.
type AskAgentInput struct {
	SessionID string `json:"sessionId" jsonschema:"session the question concerns"`
	Agent     string `json:"agent" jsonschema:"agent name, e.g. Statler or Tara"`
	Question  string `json:"question" jsonschema:"the question to put to the agent"`
}

// AskAgentOutput carries the agent's answer.
type AskAgentOutput struct {
	Agent  string `json:"agent"`
	Answer string `json:"answer"`
}

// AskAgent synchronously asks one agent a question. Section task state is
// never touched; the exchange lands in the session's event stream.
func (s *WorkflowService) AskAgent(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskAgentInput,
) (*mcp.CallToolResult, AskAgentOutput, error) {
	if input.SessionID == "" || input.Agent == "" || input.Question == "" {
		return nil, AskAgentOutput{}, fmt.Errorf("sessionId, agent, and question are required")
	}
	answer, err := s.coord.Ask(ctx, input.SessionID, input.Agent, input.Question)
	if err != nil {
		return nil, AskAgentOutput{}, err
	}
	return nil, AskAgentOutput{Agent: input.Agent, Answer: answer}, nil
}

// SetOverrideInput writes a golden override into the master context.
type SetOverrideInput struct {
	SessionID string `json:"sessionId" jsonschema:"session to modify"`
	Key       string `json:"key" jsonschema:"master-context key, e.g. exposure_denominator"`
	Value     any    `json:"value" jsonschema:"replacement value"`
	Actor     string `json:"actor" jsonschema:"who is making the override"`
}

// SetOverrideOutput confirms the override.
type SetOverrideOutput struct {
	Key    string `json:"key"`
	Frozen bool   `json:"frozen"`
}

// SetOverride replaces a master-context value and freezes the key.
func (s *WorkflowService) SetOverride(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SetOverrideInput,
) (*mcp.CallToolResult, SetOverrideOutput, error) {
	if input.SessionID == "" || input.Key == "" || input.Actor == "" {
		return nil, SetOverrideOutput{}, fmt.Errorf("sessionId, key, and actor are required")
	}
	if err := s.coord.Override(input.SessionID, input.Key, input.Value, input.Actor); err != nil {
		return nil, SetOverrideOutput{}, err
	}
	return nil, SetOverrideOutput{Key: input.Key, Frozen: true}, nil
}
