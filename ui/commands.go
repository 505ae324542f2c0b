package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"wisdar/api"
	"wisdar/model"
)

// Commands run against the session on the bubbletea worker pool; each settles
// into one of the messages in messages.go.

func (c ChatView) bootstrapCmd() tea.Cmd {
	s := c.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return bootstrapDoneMsg{err: s.Bootstrap(ctx)}
	}
}

func (c ChatView) loadCatalogCmd() tea.Cmd {
	client := c.session.API()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		providers, err := client.Providers(ctx)
		if err != nil {
			return catalogLoadedMsg{err: err}
		}
		agents, err := client.Agents(ctx)
		if err != nil {
			return catalogLoadedMsg{providers: providers, err: err}
		}
		return catalogLoadedMsg{providers: providers, agents: agents}
	}
}

func (c ChatView) sendCmd(content, attachmentPath string) tea.Cmd {
	s := c.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return sendResultMsg{err: s.SendMessage(ctx, content, attachmentPath)}
	}
}

func (c ChatView) selectConversationCmd(id model.ID) tea.Cmd {
	s := c.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return conversationSelectedMsg{id: id, err: s.SelectConversation(ctx, id)}
	}
}

func (c ChatView) executeAgentCmd(agent model.Agent, input string) tea.Cmd {
	s := c.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		err := s.ExecuteAgent(ctx, agent, api.ExecuteAgentRequest{UserInput: input})
		return agentResultMsg{err: err}
	}
}

func (c ChatView) fetchAttachmentCmd(msg model.Message) tea.Cmd {
	s := c.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		path, err := s.FetchAttachment(ctx, msg.ID, msg.Attachment)
		return attachmentFetchedMsg{messageID: msg.ID, path: path, err: err}
	}
}

func expireNotificationCmd(seq int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return notificationExpiredMsg{seq: seq}
	})
}

func flashTickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg {
		return flashTickMsg{}
	})
}
