package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func (c ChatView) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		c.showSearch = false
		c.textarea.Focus()
		return c, nil
	case "down", "ctrl+n":
		if c.selectedMatch < len(c.searchResults)-1 {
			c.selectedMatch++
		}
		return c, nil
	case "up", "ctrl+p":
		if c.selectedMatch > 0 {
			c.selectedMatch--
		}
		return c, nil
	case "enter":
		if c.selectedMatch < len(c.searchResults) {
			match := c.searchResults[c.selectedMatch]
			c.showSearch = false
			c.textarea.Focus()
			c.pendingHighlight = match.MessageIndex
			c.highlightFlash = 6
			return c, tea.Batch(c.selectConversationCmd(match.ConversationID), flashTickCmd())
		}
		return c, nil
	}

	var cmd tea.Cmd
	c.searchInput, cmd = c.searchInput.Update(msg)
	query := strings.TrimSpace(c.searchInput.Value())
	if query == "" {
		c.searchResults = nil
		c.selectedMatch = 0
		return c, cmd
	}
	results, err := c.search.SearchAllConversations(query)
	if err != nil {
		c.errText = err.Error()
		return c, cmd
	}
	c.searchResults = results
	if c.selectedMatch >= len(results) {
		c.selectedMatch = 0
	}
	return c, cmd
}

func (c *ChatView) renderSearch() string {
	var lines []string
	for i, match := range c.searchResults {
		indicator := "  "
		if i == c.selectedMatch {
			indicator = "▶ "
		}
		title := runewidth.Truncate(match.ConversationTitle, 24, "…")
		line := fmt.Sprintf("%s%s  %s", indicator,
			AssistantStyle.Render(title), match.Preview)

		style := lipgloss.NewStyle()
		if i == c.selectedMatch {
			style = style.Foreground(successColor).Bold(true)
		}
		lines = append(lines, style.Render(line))
	}
	if len(c.searchResults) == 0 && strings.TrimSpace(c.searchInput.Value()) != "" {
		lines = append(lines, DimStyle.Italic(true).Render("No matches"))
	}

	footer := FormatFooter("Type", "to search", "↑/↓", "Navigate", "Enter", "Jump", "Esc", "Close")
	return renderListModal(c.width, c.height, "Search Messages", c.searchInput.View(), lines, footer)
}
