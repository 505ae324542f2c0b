package api

import (
	"context"
	"net/http"
	"strconv"

	"wisdar/model"
)

// Providers lists the backend's AI vendors with their active services.
func (c *Client) Providers(ctx context.Context) ([]model.Provider, error) {
	var providers []model.Provider
	if err := c.doJSON(ctx, http.MethodGet, "/api/providers/", nil, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// Agents lists the pre-configured assistant personas whose underlying
// service is active.
func (c *Client) Agents(ctx context.Context) ([]model.Agent, error) {
	var agents []model.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/api/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// ExecuteAgentRequest starts an agent run. TempConversationID is the
// client-side placeholder id echoed back so the optimistic conversation can
// be matched to the server-created one. YouTubeSettings and UserInput are
// agent-specific and may be empty.
type ExecuteAgentRequest struct {
	TempConversationID model.ID          `json:"temp_conversation_id"`
	Prompt             string            `json:"prompt,omitempty"`
	UserInput          string            `json:"user_input,omitempty"`
	YouTubeSettings    map[string]string `json:"youtube_settings,omitempty"`
}

// AgentConversation is the server conversation created by an agent run plus
// the echoed client placeholder id.
type AgentConversation struct {
	model.Conversation
	TempConversationID model.ID `json:"temp_conversation_id"`
}

// ExecuteAgent runs an agent; subsequent output arrives over the push
// stream like any other conversation.
func (c *Client) ExecuteAgent(ctx context.Context, agentID int, run ExecuteAgentRequest) (*AgentConversation, error) {
	var conversation AgentConversation
	path := "/api/agents/" + strconv.Itoa(agentID) + "/execute"
	if err := c.doJSON(ctx, http.MethodPost, path, run, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}
