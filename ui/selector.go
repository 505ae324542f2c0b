package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"wisdar/model"
)

// visibleServices applies the selector filter.
func (c *ChatView) visibleServices() []serviceChoice {
	if c.serviceFilterMode && strings.TrimSpace(c.serviceFilter.Value()) != "" {
		return c.filteredServices
	}
	return c.services
}

func (c ChatView) handleModelSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if c.serviceFilterMode {
		switch msg.String() {
		case "esc":
			c.serviceFilterMode = false
			c.filteredServices = nil
			return c, nil
		case "enter":
			c.serviceFilterMode = false
			c.selectedService = 0
			return c, nil
		}
		var cmd tea.Cmd
		c.serviceFilter, cmd = c.serviceFilter.Update(msg)
		c.filteredServices = filterServices(c.services, c.serviceFilter.Value())
		return c, cmd
	}

	visible := c.visibleServices()
	switch msg.String() {
	case "esc", c.cfg.Keybindings.GetActionKey("close_model_selector"):
		c.showModelSelector = false
		c.serviceFilterMode = false
		c.filteredServices = nil
		return c, nil
	case "/":
		c.serviceFilterMode = true
		c.serviceFilter.SetValue("")
		c.serviceFilter.Focus()
		return c, nil
	case "j", "down":
		if c.selectedService < len(visible)-1 {
			c.selectedService++
		}
		return c, nil
	case "k", "up":
		if c.selectedService > 0 {
			c.selectedService--
		}
		return c, nil
	case "enter":
		if c.selectedService < len(visible) {
			chosen := visible[c.selectedService]
			c.applyModelChoice(chosen.Service.ModelID)
		}
		c.showModelSelector = false
		c.serviceFilterMode = false
		c.filteredServices = nil
		return c, nil
	}
	return c, nil
}

// applyModelChoice sets the model on the active conversation, or stages it
// for the next new conversation when none is active.
func (c *ChatView) applyModelChoice(modelID string) {
	active, ok := c.store.ActiveConversation()
	if !ok {
		c.session.StartConversation(modelID)
		return
	}
	id := active.ID
	c.store.SetConversations(func(prev []model.Conversation) []model.Conversation {
		out := append([]model.Conversation(nil), prev...)
		for i := range out {
			if out[i].ID == id {
				out[i].AIModelID = modelID
			}
		}
		return out
	})
}

func (c ChatView) handleAgentSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		c.showAgentSelector = false
		return c, nil
	case "j", "down":
		if c.selectedAgent < len(c.agents)-1 {
			c.selectedAgent++
		}
		return c, nil
	case "k", "up":
		if c.selectedAgent > 0 {
			c.selectedAgent--
		}
		return c, nil
	case "enter":
		if c.selectedAgent < len(c.agents) {
			agent := c.agents[c.selectedAgent]
			input := strings.TrimSpace(c.textarea.Value())
			c.textarea.SetValue("")
			c.showAgentSelector = false
			return c, c.executeAgentCmd(agent, input)
		}
		c.showAgentSelector = false
		return c, nil
	}
	return c, nil
}

func filterServices(services []serviceChoice, query string) []serviceChoice {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	names := make([]string, len(services))
	for i, sc := range services {
		names[i] = sc.Provider + " " + sc.Service.Name + " " + sc.Service.ModelID
	}
	matches := fuzzy.Find(query, names)
	out := make([]serviceChoice, 0, len(matches))
	for _, m := range matches {
		out = append(out, services[m.Index])
	}
	return out
}

func (c *ChatView) renderModelSelector() string {
	visible := c.visibleServices()
	current := c.currentModelID()

	var header string
	if c.serviceFilterMode {
		header = c.serviceFilter.View()
	} else if len(visible) == len(c.services) {
		header = fmt.Sprintf("%d models", len(c.services))
	} else {
		header = fmt.Sprintf("%d of %d models", len(visible), len(c.services))
	}

	var lines []string
	for i, sc := range visible {
		indicator := "  "
		if i == c.selectedService {
			indicator = "▶ "
		}
		currentMarker := ""
		if sc.Service.ModelID == current {
			currentMarker = " (current)"
		}
		line := fmt.Sprintf("%s%s — %s%s", indicator, sc.Provider, sc.Service.Name, currentMarker)

		style := lipgloss.NewStyle()
		if i == c.selectedService {
			style = style.Foreground(successColor).Bold(true)
		} else if sc.Service.ModelID == current {
			style = style.Foreground(accentColor).Bold(true)
		}
		lines = append(lines, style.Render(line))
	}
	if len(visible) == 0 {
		lines = append(lines, DimStyle.Italic(true).Render("No models available"))
	}

	var footer string
	if c.serviceFilterMode {
		footer = FormatFooter("Type", "to filter", "Enter", "Apply", "Esc", "Cancel")
	} else {
		footer = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Select", "Esc", "Close")
	}

	return renderListModal(c.width, c.height, "Select Model", header, lines, footer)
}

func (c *ChatView) renderAgentSelector() string {
	var lines []string
	for i, agent := range c.agents {
		indicator := "  "
		if i == c.selectedAgent {
			indicator = "▶ "
		}
		line := indicator + agent.Name
		if agent.Description != "" {
			line += "  " + DimStyle.Render(agent.Description)
		}
		style := lipgloss.NewStyle()
		if i == c.selectedAgent {
			style = style.Foreground(successColor).Bold(true)
		}
		lines = append(lines, style.Render(line))
	}
	if len(c.agents) == 0 {
		lines = append(lines, DimStyle.Italic(true).Render("No agents available"))
	}

	header := fmt.Sprintf("%d agents — input text becomes the agent's input", len(c.agents))
	footer := FormatFooter("j/k", "Navigate", "Enter", "Run", "Esc", "Close")
	return renderListModal(c.width, c.height, "Run Agent", header, lines, footer)
}

// renderListModal is the borderless three-section modal shared by the
// selectors: centered title, bordered header, list body, bordered footer.
func renderListModal(width, height int, title, header string, lines []string, footer string) string {
	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(title)

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	body := make([]string, 0, len(lines)+2)
	empty := strings.Repeat(" ", modalWidth)
	body = append(body, empty)
	for _, line := range lines {
		body = append(body, lipgloss.NewStyle().Width(modalWidth).Render(line))
	}
	body = append(body, empty)

	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	sections := []string{titleSection, headerSection}
	sections = append(sections, body...)
	sections = append(sections, footerSection)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		strings.Join(sections, "\n"))
}
